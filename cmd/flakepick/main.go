// Command flakepick is an interactive picker for nix flake templates.
//
// It enumerates templates from the configured flake sources, ranks them
// against the query by fuzzy match plus usage recency, and runs
// `nix flake init -t <ref>` for the chosen one in the current directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"flakepick/internal/action"
	"flakepick/internal/catalog"
	"flakepick/internal/config"
	"flakepick/internal/frecency"
	"flakepick/internal/logging"
	"flakepick/internal/match"
	"flakepick/internal/pipeline"
	"flakepick/internal/rank"
	"flakepick/internal/selection"
	"flakepick/internal/ui"
)

func main() {
	reCache := flag.Bool("re-cache", false, "refresh the template catalog instead of using the cache")
	fullscreen := flag.Bool("fullscreen", false, "take over the whole terminal instead of rendering inline")
	inline := flag.Int("inline", config.DefaultInline, "number of result rows in inline mode")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("flakepick %s\n", Version)
		return
	}

	// --inline only means something without the alternate screen, so an
	// explicit combination with --fullscreen is rejected.
	inlineSet, fullscreenSet := false, false
	flag.CommandLine.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "inline":
			inlineSet = true
		case "fullscreen":
			fullscreenSet = true
		}
	})
	if *fullscreen && inlineSet {
		fatal("flakepick: --inline cannot be combined with --fullscreen")
	}

	if stateDir, err := config.StateDir(); err == nil {
		if err := logging.Init(filepath.Join(stateDir, "logs")); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
		}
	}
	defer logging.Close()

	logging.Info("flakepick starting", "version", Version)

	if err := config.Initialize(); err != nil {
		fatal("Failed to load configuration: %v", err)
	}

	overrides := map[string]any{}
	if inlineSet {
		overrides[config.KeyInline] = *inline
		// An explicit row count asks for inline mode even when the
		// config file says fullscreen.
		if !fullscreenSet {
			overrides[config.KeyFullscreen] = false
		}
	}
	if fullscreenSet {
		overrides[config.KeyFullscreen] = *fullscreen
	}
	if err := config.ApplyOverrides(overrides); err != nil {
		fatal("Failed to apply flag overrides: %v", err)
	}

	rows := config.GetInt(config.KeyInline)
	if rows <= 0 {
		fatal("flakepick: inline rows must be positive")
	}
	altScreen := config.GetBool(config.KeyFullscreen)

	caseMode, err := match.ParseCase(config.GetString(config.KeyCase))
	if err != nil {
		fatal("Bad configuration: %v", err)
	}
	normMode, err := match.ParseNormalize(config.GetString(config.KeyNormalize))
	if err != nil {
		fatal("Bad configuration: %v", err)
	}
	matcher, err := match.New(match.Config{Case: caseMode, Normalize: normMode})
	if err != nil {
		fatal("Bad configuration: %v", err)
	}

	dataDir, err := config.DataDir()
	if err != nil {
		fatal("Failed to locate data directory: %v", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		fatal("Failed to create data directory: %v", err)
	}
	store, err := frecency.Open(
		filepath.Join(dataDir, "frecency.db"),
		config.GetString(config.KeyStoreNamespace),
		config.GetDuration(config.KeyHalfLife),
	)
	if err != nil {
		fatal("Failed to open recency store: %v", err)
	}
	defer store.Close()
	logging.Info("Recency store opened", "entries", store.Len())

	templates, err := loadCatalog(*reCache)
	if err != nil {
		fatal("Failed to load template catalog: %v", err)
	}
	logging.Info("Catalog ready", "templates", len(templates))

	items := catalog.Items(templates)
	combiner := rank.NewCombiner(rank.Weights{
		Fuzzy:   config.GetFloat64(config.KeyFuzzyWeight),
		Recency: config.GetFloat64(config.KeyRecencyWeight),
	}, store)

	sched := pipeline.New(pipeline.Config{
		BatchSize: config.GetInt(config.KeyBatchSize),
	}, items, matcher, combiner)
	defer sched.Close()

	workDir, err := os.Getwd()
	if err != nil {
		fatal("Failed to determine working directory: %v", err)
	}
	runner := action.NewRunner(workDir)
	ctrl := selection.New(selection.Config{
		Bonus:   config.GetFloat64(config.KeyBonus),
		Timeout: config.GetDuration(config.KeyActionTimeout),
	}, runner, store)

	app := ui.NewApp(ui.Config{
		SetQuery: func(query string) {
			sched.SetQuery(query)
		},
		Commit: func(item rank.Item) tea.Cmd {
			return func() tea.Msg {
				err := ctrl.Commit(context.Background(), item)
				return ui.ActionDone{Item: item, Err: err}
			}
		},
		Inline:     rows,
		Fullscreen: altScreen,
		Total:      sched.Len(),
	})

	opts := []tea.ProgramOption{}
	if altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(app, opts...)

	// Scoring passes run on their own goroutines; views cross into the
	// UI loop via program.Send. No pass starts before Init fires the
	// first query, so the sink never blocks on an unstarted program.
	sched.SetSink(func(v pipeline.View) {
		program.Send(ui.ResultsMsg{View: v})
	})

	logging.Info("Starting UI")
	final, err := program.Run()
	if err != nil {
		logging.Error("Application error", "error", err)
		fatal("Error: %v", err)
	}

	if a, ok := final.(ui.App); ok {
		if item, applied := a.Applied(); applied {
			if tpl, ok := item.Payload.(catalog.Template); ok {
				fmt.Printf("Initialized flake from %s\n", tpl.Ref())
			}
		}
	}

	logging.Info("flakepick exiting")
}

// loadCatalog returns the cached template list, or enumerates the
// configured sources and refreshes the cache. A missing or corrupt
// cache falls through to enumeration.
func loadCatalog(reCache bool) ([]catalog.Template, error) {
	cacheDir, err := config.CacheDir()
	if err != nil {
		return nil, err
	}
	cachePath := filepath.Join(cacheDir, "catalog.json")

	if !reCache {
		templates, err := catalog.LoadCache(cachePath)
		if err == nil {
			logging.Info("Catalog loaded from cache", "path", cachePath, "templates", len(templates))
			return templates, nil
		}
		logging.Debug("Catalog cache unusable", "path", cachePath, "error", err)
	}

	sources, err := config.Sources()
	if err != nil {
		return nil, err
	}

	// Enumeration shells out to nix before the UI starts, so say so.
	fmt.Fprintf(os.Stderr, "flakepick: enumerating templates from %d source(s)...\n", len(sources))

	lister := catalog.NewLister(config.GetDuration(config.KeyShowTimeout))
	templates, err := lister.Enumerate(context.Background(), sources)
	if err != nil {
		return nil, err
	}

	if err := catalog.SaveCache(cachePath, templates); err != nil {
		logging.Warn("Failed to save catalog cache", "path", cachePath, "error", err)
	}
	return templates, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
