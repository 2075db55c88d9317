package classify

import (
	"errors"
	"testing"

	"github.com/efebarandurmaz/importgraph/internal/ir"
)

func TestClassify(t *testing.T) {
	idx := New(DefaultPreset())
	tests := []struct {
		id   string
		want ir.Category
	}{
		{"os", ir.Common},
		{"numpy", ir.Common},
		{"networkx", ir.Common},
		{"re", ir.Uncommon},
		{"cv2", ir.Uncommon},
		{"numpy_indexed", ir.Uncommon},
		{"mymodule", ir.Custom},
		{"", ir.Custom},
		{"OS", ir.Custom},
	}
	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			if got := idx.Classify(tc.id); got != tc.want {
				t.Errorf("Classify(%q) = %s, want %s", tc.id, got, tc.want)
			}
		})
	}
}

func TestClassify_TotalAndDeterministic(t *testing.T) {
	idx := New(DefaultPreset())
	ids := []string{"os", "re", "b", "a.b", "ünïcode", "__future__", " ", "pygame"}
	for _, id := range ids {
		first := idx.Classify(id)
		if !first.Valid() {
			t.Fatalf("Classify(%q) = %q, not a category", id, first)
		}
		for i := 0; i < 3; i++ {
			if got := idx.Classify(id); got != first {
				t.Fatalf("Classify(%q) changed from %s to %s", id, first, got)
			}
		}
	}
}

func TestClassify_CommonWinsOnOverlap(t *testing.T) {
	idx := New(Preset{Common: []string{"x"}, Uncommon: []string{"x", "y"}})
	if got := idx.Classify("x"); got != ir.Common {
		t.Errorf("x = %s, want common", got)
	}
	if got := idx.Classify("y"); got != ir.Uncommon {
		t.Errorf("y = %s, want uncommon", got)
	}
}

func TestPresetCheck(t *testing.T) {
	if err := DefaultPreset().Check(); err != nil {
		t.Fatalf("default preset: %v", err)
	}
	if err := (Preset{}).Check(); err != nil {
		t.Fatalf("empty preset: %v", err)
	}

	tests := []struct {
		name   string
		preset Preset
		field  string
	}{
		{"overlap", Preset{Common: []string{"os"}, Uncommon: []string{"os"}}, "preset"},
		{"empty", Preset{Common: []string{"os", ""}}, "preset.common_set[1]"},
		{"dotted", Preset{Uncommon: []string{"os.path"}}, "preset.uncommon_set[0]"},
		{"space", Preset{Common: []string{"my mod"}}, "preset.common_set[0]"},
		{"duplicate", Preset{Uncommon: []string{"re", "re"}}, "preset.uncommon_set[1]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.preset.Check()
			var ce *ir.ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *ir.ConfigurationError, got %v", err)
			}
			if ce.Field != tc.field {
				t.Errorf("field = %q, want %q", ce.Field, tc.field)
			}
		})
	}
}
