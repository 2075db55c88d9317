package perl

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/efebarandurmaz/importgraph/internal/ir"
	"github.com/efebarandurmaz/importgraph/internal/plugins"
)

// Plugin implements SourcePlugin for Perl.
type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Language() string { return "perl" }

func (p *Plugin) FileExtensions() []string { return []string{".pl", ".pm"} }

var (
	// use Foo::Bar; use Foo::Bar qw(x); no Foo;
	usePattern = regexp.MustCompile(`^(?:use|no)\b\s*(.*)$`)

	// require Foo::Bar;
	requirePattern = regexp.MustCompile(`^require\b\s*(.*)$`)

	modulePattern  = regexp.MustCompile(`^([A-Za-z_]\w*)((?:::\w+)*)`)
	versionPattern = regexp.MustCompile(`^v?\d[\d._]*\s*;?`)
	podPattern     = regexp.MustCompile(`^=[A-Za-z]`)
)

// ScanImports collects the top-level namespace of every use/require
// statement. Pragmas (all lower-case names such as strict) and version
// requirements are not modules. require with a runtime expression is skipped.
func (p *Plugin) ScanImports(ctx context.Context, f plugins.SourceFile) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []string
	seen := make(map[string]bool)
	inPod := false

	sc := bufio.NewScanner(bytes.NewReader(f.Content))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		if podPattern.MatchString(raw) {
			inPod = !strings.HasPrefix(raw, "=cut")
			continue
		}
		if inPod {
			continue
		}
		line := stripComment(raw)
		if line == "__END__" || line == "__DATA__" {
			break
		}
		if line == "" {
			continue
		}

		for _, stmt := range strings.Split(line, ";") {
			stmt = strings.TrimSpace(stmt)
			var rest string
			dynamicOK := false
			if m := usePattern.FindStringSubmatch(stmt); m != nil {
				rest = m[1]
			} else if m := requirePattern.FindStringSubmatch(stmt); m != nil {
				rest = m[1]
				dynamicOK = true
			} else {
				continue
			}

			id, err := topNamespace(rest, dynamicOK)
			if err != "" {
				return nil, &ir.ScanError{Path: f.Path, Line: lineNo, Reason: err}
			}
			if id != "" && !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &ir.ScanError{Path: f.Path, Line: lineNo, Reason: err.Error()}
	}
	return out, nil
}

// topNamespace returns "Foo" for "Foo::Bar qw(x)". An empty id with an empty
// reason means the statement names no module.
func topNamespace(rest string, dynamicOK bool) (string, string) {
	if rest == "" {
		return "", "missing module name"
	}
	if versionPattern.MatchString(rest) {
		return "", ""
	}
	m := modulePattern.FindStringSubmatch(rest)
	if m == nil {
		if dynamicOK {
			return "", ""
		}
		return "", "invalid module name " + quoteFirst(rest)
	}
	name := m[1]
	if m[2] == "" && isPragma(name) {
		return "", ""
	}
	return name, ""
}

func quoteFirst(s string) string {
	if i := strings.IndexAny(s, " \t"); i > 0 {
		s = s[:i]
	}
	return `"` + s + `"`
}

func isPragma(name string) bool {
	return name == strings.ToLower(name)
}

func stripComment(line string) string {
	if idx := strings.Index(line, "#"); idx >= 0 {
		before := line[:idx]
		if strings.Count(before, `"`)%2 == 0 && strings.Count(before, `'`)%2 == 0 {
			line = before
		}
	}
	return strings.TrimSpace(line)
}
