package perl

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/efebarandurmaz/importgraph/internal/ir"
	"github.com/efebarandurmaz/importgraph/internal/plugins"
)

func TestScanDependencies(t *testing.T) {
	src := []byte(`#!/usr/bin/perl
use strict;
use warnings;
use 5.010;
use Data::Dumper;
use My::Custom::Module qw(helper);
require Another::Module;
require $dynamic_file;
use My::Custom::Other; # same top namespace

package TestModule;

sub test {
    # use Commented::Out;
}
`)
	got, err := New().ScanImports(context.Background(), plugins.SourceFile{Path: "deps.pl", Content: src})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Data", "My", "Another"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScanPodAndEnd(t *testing.T) {
	src := []byte(`use Foo;

=pod

use InPod;

=cut

my $x = 1; use Bar;
__END__
use AfterEnd;
`)
	got, err := New().ScanImports(context.Background(), plugins.SourceFile{Path: "pod.pm", Content: src})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Foo", "Bar"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScanNoImports(t *testing.T) {
	got, err := New().ScanImports(context.Background(), plugins.SourceFile{Path: "plain.pl", Content: []byte("print \"hi\\n\";\n")})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no imports, got %v", got)
	}
}

func TestScanMalformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"missing name", "use strict;\nuse ;\n", 2},
		{"invalid name", "use $x;\n", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New().ScanImports(context.Background(), plugins.SourceFile{Path: "bad.pl", Content: []byte(tc.src)})
			var se *ir.ScanError
			if !errors.As(err, &se) {
				t.Fatalf("expected *ir.ScanError, got %v", err)
			}
			if se.Line != tc.line {
				t.Errorf("line = %d, want %d", se.Line, tc.line)
			}
		})
	}
}

func TestPluginMetadata(t *testing.T) {
	p := New()
	if p.Language() != "perl" {
		t.Errorf("language = %q", p.Language())
	}
	if !reflect.DeepEqual(p.FileExtensions(), []string{".pl", ".pm"}) {
		t.Errorf("extensions = %v", p.FileExtensions())
	}
}
