package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"flakepick/internal/logging"
)

// defaultShowTimeout bounds a single nix flake show invocation.
const defaultShowTimeout = 30 * time.Second

// maxConcurrentShows limits parallel nix invocations.
const maxConcurrentShows = 4

// Lister enumerates templates by running nix against each source.
type Lister struct {
	limiter *rate.Limiter
	timeout time.Duration
	run     func(ctx context.Context, argv []string) ([]byte, error) // injectable for testing
}

// NewLister creates a Lister. A non-positive timeout selects the
// default per-invocation bound.
func NewLister(timeout time.Duration) *Lister {
	if timeout <= 0 {
		timeout = defaultShowTimeout
	}
	return &Lister{
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
		timeout: timeout,
		run:     runNix,
	}
}

// runNix executes argv and returns stdout. Stderr rides along inside
// the *exec.ExitError for diagnostics.
func runNix(ctx context.Context, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	return cmd.Output()
}

// Enumerate runs nix flake show over every source, in parallel but
// bounded and rate-limited. The returned slice preserves source order;
// within one flake the default template leads and the rest follow
// sorted by name, so catalog order is identical run to run. A failing
// source is logged and skipped; the error is non-nil only when every
// source failed.
func (l *Lister) Enumerate(ctx context.Context, sources []Source) ([]Template, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	results := make([][]Template, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(maxConcurrentShows)

	for i, src := range sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return nil
			}
			ts, err := l.enumerateSource(ctx, src)
			if err != nil {
				logging.Warn("template source failed", "uri", src.URI, "err", err)
				errs[i] = err
				return nil // never fail the group - errors reported per-source
			}
			results[i] = ts
			return nil
		})
	}
	_ = g.Wait()

	var all []Template
	failed := 0
	for i := range sources {
		if errs[i] != nil {
			failed++
			continue
		}
		all = append(all, results[i]...)
	}
	if failed == len(sources) {
		return nil, fmt.Errorf("all %d template sources failed", failed)
	}
	return all, nil
}

// enumerateSource shells out to nix for one flake, under the shared
// rate limiter and a per-invocation timeout.
func (l *Lister) enumerateSource(ctx context.Context, src Source) ([]Template, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	showCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	out, err := l.run(showCtx, []string{"nix", "flake", "show", src.URI, "--json"})
	if err != nil {
		return nil, fmt.Errorf("nix flake show %s: %w", src.URI, err)
	}
	return parseShow(src, out)
}

// showNode is one template attribute in nix flake show output.
type showNode struct {
	Description string `json:"description"`
}

// showOutput is the subset of nix flake show --json we consume.
type showOutput struct {
	DefaultTemplate *showNode           `json:"defaultTemplate"`
	Templates       map[string]showNode `json:"templates"`
}

// parseShow flattens nix's JSON into catalog order for one source:
// "default" first when the flake has one, the rest sorted by name,
// filtered through the source's allow-list.
func parseShow(src Source, out []byte) ([]Template, error) {
	var parsed showOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parsing flake show output for %s: %w", src.URI, err)
	}

	allow := make(map[string]bool, len(src.Templates))
	for _, name := range src.Templates {
		allow[name] = true
	}
	allowed := func(name string) bool {
		return len(allow) == 0 || allow[name]
	}

	template := func(name, description string) Template {
		return Template{
			Name:        name,
			URI:         src.URI,
			Source:      src.Name,
			Description: description,
		}
	}

	var ts []Template

	// defaultTemplate is usually an alias for templates.default; the
	// explicit entry wins when both are present.
	defaultNode, hasDefault := parsed.Templates["default"]
	if !hasDefault && parsed.DefaultTemplate != nil {
		defaultNode, hasDefault = *parsed.DefaultTemplate, true
	}
	if hasDefault && allowed("default") {
		ts = append(ts, template("default", defaultNode.Description))
	}

	names := make([]string, 0, len(parsed.Templates))
	for name := range parsed.Templates {
		if name != "default" && allowed(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		ts = append(ts, template(name, parsed.Templates[name].Description))
	}
	return ts, nil
}
