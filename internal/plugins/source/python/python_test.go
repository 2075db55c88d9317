package python

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/efebarandurmaz/importgraph/internal/ir"
	"github.com/efebarandurmaz/importgraph/internal/plugins"
)

func scan(t *testing.T, src string) []string {
	t.Helper()
	got, err := New().ScanImports(context.Background(), plugins.SourceFile{Path: "mod.py", Content: []byte(src)})
	if err != nil {
		t.Fatalf("ScanImports: %v", err)
	}
	return got
}

func TestScanImports(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"plain", "import os\n", []string{"os"}},
		{"dotted keeps top segment", "import os.path\nimport a.b.c\n", []string{"os", "a"}},
		{"alias", "import numpy as np\n", []string{"numpy"}},
		{"comma list", "import os, sys as system, json\n", []string{"os", "sys", "json"}},
		{"from absolute", "from collections.abc import Mapping\n", []string{"collections"}},
		{"from star", "from pylab import *\n", []string{"pylab"}},
		{"relative dropped", "from . import sibling\nfrom ..pkg import x\nfrom .mod import y\n", nil},
		{"dedup first occurrence", "import b\nimport a\nimport b.c\nfrom a import z\n", []string{"b", "a"}},
		{"no imports", "x = 1\nprint(x)\n", nil},
		{"empty file", "", nil},
		{"comment ignored", "# import fake\nimport real  # import other\n", []string{"real"}},
		{"docstring ignored", "\"\"\"\nimport fake\nfrom fake import x\n\"\"\"\nimport real\n", []string{"real"}},
		{"string ignored", "s = 'import fake'\nt = r\"from x import y\"\n", nil},
		{"parenthesized names", "from pkg.sub import (\n    a,\n    b as c,\n)\n", []string{"pkg"}},
		{"continuation", "import os, \\\n    sys\n", []string{"os", "sys"}},
		{"semicolons", "import a; import b; x = 1\n", []string{"a", "b"}},
		{"nested in function", "def f():\n    import inner\n    return inner\n", []string{"inner"}},
		{"same line after header", "try: import ujson as json\nexcept ImportError: import json\n", []string{"ujson", "json"}},
		{"header with brackets", "if f(a[1:2], {'k': 1}): import x\n", []string{"x"}},
		{"class body", "class A:\n    from typing import List\n", []string{"typing"}},
		{"future", "from __future__ import annotations\n", []string{"__future__"}},
		{"unicode name", "import café\n", []string{"café"}},
		{"crlf", "import a\r\nimport b\r\n", []string{"a", "b"}},
		{"bom", "\xef\xbb\xbfimport a\n", []string{"a"}},
		{"attribute named import", "importlib.reload(x)\n", nil},
		{"print call", "print('hello')\nimport os\n", []string{"os"}},
		{"match case body", "match x:\n    case 1: import inner\n", []string{"inner"}},
		{"match case block", "match cmd:\n    case \"go\":\n        from runner import go\n    case _:\n        pass\n", []string{"runner"}},
		{"deeply nested", "def f():\n    if x:\n        with y:\n            import deep\n", []string{"deep"}},
		{"crlf string continuation", "s = 'a\\\r\nb'\r\nimport os\r\n", []string{"os"}},
		{"lf string continuation", "s = 'a\\\nb'\nimport os\n", []string{"os"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := scan(t, tc.src)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestScanImports_Malformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"bare import", "import os\nimport\n", 2},
		{"trailing dot", "import os.\n", 1},
		{"keyword module", "import class\n", 1},
		{"from without import", "from os path\n", 1},
		{"from without module", "from import x\n", 1},
		{"missing names", "from os import\n", 1},
		{"unclosed paren", "x = 1\nfrom os import (a,\n", 2},
		{"unmatched close", "x = 1)\n", 1},
		{"unterminated string", "s = 'abc\nimport os\n", 1},
		{"unterminated docstring", "import os\n\"\"\"never closed\n", 2},
		{"trailing garbage", "import os sys\n", 1},
		{"paren in plain import", "import (os)\n", 1},
		{"syntax error outside imports", "import os\ndef f(:\n    pass\n", 2},
		{"python 2 print", "print 'hello'\nimport os\n", 1},
		{"python 2 exec", "import os\nexec \"x = 1\"\n", 2},
		{"invalid utf-8", "import os\nx = '\xff\xfe'\n", 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New().ScanImports(context.Background(), plugins.SourceFile{Path: "bad.py", Content: []byte(tc.src)})
			var se *ir.ScanError
			if !errors.As(err, &se) {
				t.Fatalf("expected *ir.ScanError, got %v", err)
			}
			if se.Path != "bad.py" {
				t.Errorf("path = %q", se.Path)
			}
			if se.Line != tc.line {
				t.Errorf("line = %d, want %d (%s)", se.Line, tc.line, se.Reason)
			}
		})
	}
}

func TestScanImports_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().ScanImports(ctx, plugins.SourceFile{Path: "a.py"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPluginMetadata(t *testing.T) {
	p := New()
	if p.Language() != "python" {
		t.Errorf("language = %q", p.Language())
	}
	if !reflect.DeepEqual(p.FileExtensions(), []string{".py"}) {
		t.Errorf("extensions = %v", p.FileExtensions())
	}
}
