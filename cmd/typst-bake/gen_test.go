// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"go/parser"
	"go/token"
	"strconv"
	"strings"
	"testing"

	"github.com/elgar328/typst-bake/lib/bake"
	"github.com/elgar328/typst-bake/lib/blobcache"
	"github.com/elgar328/typst-bake/lib/dirembed"
)

func compressForTest(t *testing.T, content []byte) *blobcache.Blob {
	t.Helper()
	cache, err := blobcache.New("", 3)
	if err != nil {
		t.Fatal(err)
	}
	blob, err := cache.Compress(content)
	if err != nil {
		t.Fatal(err)
	}
	return blob
}

func testResult(t *testing.T) *bake.Result {
	t.Helper()
	mainBlob := compressForTest(t, []byte("= Report\n"))
	fontBlob := compressForTest(t, []byte("font bytes"))
	libBlob := compressForTest(t, []byte("#let canvas() = {}"))

	return &bake.Result{
		Templates: &dirembed.Result{
			Entries: []dirembed.Entry{
				dirembed.File{Name: "main.typ", Blob: mainBlob},
				dirembed.Dir{
					Name: "assets",
					Entries: []dirembed.Entry{
						dirembed.File{Name: "logo.svg", Blob: compressForTest(t, []byte("<svg/>"))},
					},
				},
			},
		},
		Fonts: &dirembed.Result{
			Entries: []dirembed.Entry{
				dirembed.File{Name: "Roboto.ttf", Blob: fontBlob},
			},
		},
		Packages: &dirembed.Result{
			Entries: []dirembed.Entry{
				dirembed.Dir{
					Name: "preview",
					Entries: []dirembed.Entry{
						dirembed.Dir{
							Name: "cetz",
							Entries: []dirembed.Entry{
								dirembed.Dir{
									Name: "0.3.2",
									Entries: []dirembed.Entry{
										dirembed.File{Name: "lib.typ", Blob: libBlob},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

func TestGenerateProducesValidGo(t *testing.T) {
	source, err := Generate("assets", testResult(t))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	fileSet := token.NewFileSet()
	parsed, err := parser.ParseFile(fileSet, "baked_assets.go", source, 0)
	if err != nil {
		t.Fatalf("generated source does not parse: %v\n%s", err, source)
	}
	if parsed.Name.Name != "assets" {
		t.Errorf("package clause = %q, want assets", parsed.Name.Name)
	}
}

func TestGenerateContent(t *testing.T) {
	result := testResult(t)
	source, err := Generate("main", result)
	if err != nil {
		t.Fatal(err)
	}
	text := string(source)

	if !strings.HasPrefix(text, "// Code generated by typst-bake. DO NOT EDIT.") {
		t.Error("generated source missing the generated-code marker")
	}
	for _, want := range []string{
		"var Templates = baked.Dir{",
		"var Fonts = baked.Dir{",
		"var Packages = baked.Dir{",
		`{Name: "main.typ"`,
		`Name: "assets"`,
		`Name: "preview"`,
		`Name: "0.3.2"`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("generated source missing %q", want)
		}
	}

	// The compressed bytes appear verbatim as a quoted literal.
	templates := bake.BuildTree("", result.Templates)
	file, ok := templates.Lookup("main.typ")
	if !ok {
		t.Fatal("fixture missing main.typ")
	}
	if !strings.Contains(text, strconv.Quote(string(file.Data))) {
		t.Error("generated source missing the compressed data literal")
	}
}

func TestGenerateEmptyTrees(t *testing.T) {
	empty := &bake.Result{
		Templates: &dirembed.Result{},
		Fonts:     &dirembed.Result{},
		Packages:  &dirembed.Result{},
	}
	source, err := Generate("main", empty)
	if err != nil {
		t.Fatalf("Generate failed on empty trees: %v", err)
	}
	if _, err := parser.ParseFile(token.NewFileSet(), "empty.go", source, 0); err != nil {
		t.Errorf("generated source does not parse: %v\n%s", err, source)
	}
}

func TestGenerateBadPackageName(t *testing.T) {
	if _, err := Generate("not a package", testResult(t)); err == nil {
		t.Error("Generate accepted an invalid package name")
	}
}
