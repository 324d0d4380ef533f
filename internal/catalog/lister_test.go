package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

const showJSON = `{
	"defaultTemplate": {"description": "A very basic flake", "type": "template"},
	"templates": {
		"go": {"description": "Go project", "type": "template"},
		"rust": {"description": "Rust project", "type": "template"}
	}
}`

// newTestLister returns a Lister with an uncapped limiter and the given
// fake runner.
func newTestLister(run func(ctx context.Context, argv []string) ([]byte, error)) *Lister {
	l := NewLister(time.Second)
	l.limiter = rate.NewLimiter(rate.Inf, 1)
	l.run = run
	return l
}

func TestEnumerateParsesShowOutput(t *testing.T) {
	l := newTestLister(func(_ context.Context, argv []string) ([]byte, error) {
		want := []string{"nix", "flake", "show", "github:NixOS/templates", "--json"}
		if len(argv) != len(want) {
			t.Errorf("argv = %v, want %v", argv, want)
		}
		for i := range want {
			if argv[i] != want[i] {
				t.Errorf("argv[%d] = %q, want %q", i, argv[i], want[i])
			}
		}
		return []byte(showJSON), nil
	})

	got, err := l.Enumerate(context.Background(), []Source{{Name: "nixos", URI: "github:NixOS/templates"}})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}

	wantNames := []string{"default", "go", "rust"}
	if len(got) != len(wantNames) {
		t.Fatalf("got %d templates, want %d", len(got), len(wantNames))
	}
	for i, name := range wantNames {
		if got[i].Name != name {
			t.Errorf("template %d = %q, want %q (default first, rest sorted)", i, got[i].Name, name)
		}
		if got[i].URI != "github:NixOS/templates" {
			t.Errorf("template %d uri = %q", i, got[i].URI)
		}
		if got[i].Source != "nixos" {
			t.Errorf("template %d source = %q", i, got[i].Source)
		}
	}
	if got[0].Description != "A very basic flake" {
		t.Errorf("default description = %q", got[0].Description)
	}
}

func TestEnumerateKeepsConfiguredSourceOrder(t *testing.T) {
	l := newTestLister(func(_ context.Context, argv []string) ([]byte, error) {
		switch argv[3] {
		case "github:a/templates":
			time.Sleep(30 * time.Millisecond) // finishes after b
			return []byte(`{"templates": {"a1": {}}}`), nil
		case "github:b/templates":
			return []byte(`{"templates": {"b1": {}}}`), nil
		}
		return nil, errors.New("unexpected uri")
	})

	got, err := l.Enumerate(context.Background(), []Source{
		{URI: "github:a/templates"},
		{URI: "github:b/templates"},
	})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a1" || got[1].Name != "b1" {
		t.Errorf("catalog order = %v, want a1 then b1 regardless of completion order", got)
	}
}

func TestEnumerateSkipsFailingSource(t *testing.T) {
	l := newTestLister(func(_ context.Context, argv []string) ([]byte, error) {
		if argv[3] == "github:broken/flake" {
			return nil, errors.New("exit status 1")
		}
		return []byte(`{"templates": {"ok": {}}}`), nil
	})

	got, err := l.Enumerate(context.Background(), []Source{
		{URI: "github:broken/flake"},
		{URI: "github:good/flake"},
	})
	if err != nil {
		t.Fatalf("partial failure should not be fatal: %v", err)
	}
	if len(got) != 1 || got[0].Name != "ok" {
		t.Errorf("got %v, want only the healthy source's template", got)
	}
}

func TestEnumerateAllSourcesFailed(t *testing.T) {
	l := newTestLister(func(context.Context, []string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	})

	got, err := l.Enumerate(context.Background(), []Source{
		{URI: "github:a/flake"},
		{URI: "github:b/flake"},
	})
	if err == nil {
		t.Error("want an error when every source fails")
	}
	if len(got) != 0 {
		t.Errorf("got %d templates from failed sources", len(got))
	}
}

func TestEnumerateNoSources(t *testing.T) {
	l := newTestLister(func(context.Context, []string) ([]byte, error) {
		t.Error("nix invoked with no sources configured")
		return nil, nil
	})

	got, err := l.Enumerate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d templates, want 0", len(got))
	}
}

func TestEnumerateAllowList(t *testing.T) {
	l := newTestLister(func(context.Context, []string) ([]byte, error) {
		return []byte(showJSON), nil
	})

	got, err := l.Enumerate(context.Background(), []Source{
		{URI: "github:NixOS/templates", Templates: []string{"rust"}},
	})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(got) != 1 || got[0].Name != "rust" {
		t.Errorf("allow-list result = %v, want only rust", got)
	}
}

func TestEnumerateCancelledContext(t *testing.T) {
	l := newTestLister(func(context.Context, []string) ([]byte, error) {
		return []byte(showJSON), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.Enumerate(ctx, []Source{{URI: "github:NixOS/templates"}}); err == nil {
		t.Error("want an error when enumeration starts on a dead context")
	}
}

func TestParseShowPrefersExplicitDefault(t *testing.T) {
	out := []byte(`{
		"defaultTemplate": {"description": "alias"},
		"templates": {
			"default": {"description": "explicit"},
			"zig": {"description": "Zig project"}
		}
	}`)

	got, err := parseShow(Source{URI: "github:x/flake"}, out)
	if err != nil {
		t.Fatalf("parseShow: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d templates, want 2 (no duplicate default)", len(got))
	}
	if got[0].Name != "default" || got[0].Description != "explicit" {
		t.Errorf("first template = %+v, want explicit default entry", got[0])
	}
	if got[1].Name != "zig" {
		t.Errorf("second template = %q, want zig", got[1].Name)
	}
}

func TestParseShowRejectsGarbage(t *testing.T) {
	if _, err := parseShow(Source{URI: "github:x/flake"}, []byte("not json")); err == nil {
		t.Error("want a parse error for non-JSON output")
	}
}
