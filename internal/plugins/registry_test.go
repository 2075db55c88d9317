package plugins

import (
	"context"
	"testing"
)

type mockSource struct{ lang string }

func (m *mockSource) Language() string         { return m.lang }
func (m *mockSource) FileExtensions() []string { return []string{".mock"} }
func (m *mockSource) ScanImports(_ context.Context, _ SourceFile) ([]string, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.RegisterSource(&mockSource{lang: "mock"})

	if _, err := r.Source("mock"); err != nil {
		t.Errorf("expected source, got error: %v", err)
	}
	if _, err := r.Source("unknown"); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestRegistry_Languages(t *testing.T) {
	r := NewRegistry()
	r.RegisterSource(&mockSource{lang: "zeta"})
	r.RegisterSource(&mockSource{lang: "alpha"})

	langs := r.Languages()
	if len(langs) != 2 || langs[0] != "alpha" || langs[1] != "zeta" {
		t.Errorf("expected sorted [alpha zeta], got %v", langs)
	}
}
