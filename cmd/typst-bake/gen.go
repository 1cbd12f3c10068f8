// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"go/format"
	"strconv"
	"strings"

	"github.com/elgar328/typst-bake/lib/bake"
	"github.com/elgar328/typst-bake/lib/baked"
)

// Generate renders a pipeline result as a Go source file exposing three
// package-level trees: Templates, Fonts, and Packages. The compressed
// bytes are emitted as string literals, so the generated file has no
// build-time dependencies beyond the baked runtime package.
func Generate(packageName string, result *bake.Result) ([]byte, error) {
	var buffer bytes.Buffer

	buffer.WriteString("// Code generated by typst-bake. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buffer, "package %s\n\n", packageName)
	buffer.WriteString("import \"github.com/elgar328/typst-bake/lib/baked\"\n\n")

	buffer.WriteString("// Templates is the embedded template tree.\n")
	buffer.WriteString("var Templates = ")
	writeDir(&buffer, bake.BuildTree("", result.Templates), 0)
	buffer.WriteString("\n\n")

	buffer.WriteString("// Fonts is the embedded font tree.\n")
	buffer.WriteString("var Fonts = ")
	writeDir(&buffer, bake.BuildTree("", result.Fonts), 0)
	buffer.WriteString("\n\n")

	buffer.WriteString("// Packages is the embedded package tree, grouped namespace/name/version.\n")
	buffer.WriteString("var Packages = ")
	writeDir(&buffer, bake.BuildTree("", result.Packages), 0)
	buffer.WriteString("\n")

	source, err := format.Source(buffer.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting generated source: %w", err)
	}
	return source, nil
}

// writeDir emits a baked.Dir composite literal at the given indentation
// depth. File data is quoted as a string literal; gofmt keeps long
// literals on one line, which suits generated data.
func writeDir(buffer *bytes.Buffer, dir baked.Dir, depth int) {
	indent := strings.Repeat("\t", depth)

	buffer.WriteString("baked.Dir{\n")
	if dir.Name != "" {
		fmt.Fprintf(buffer, "%s\tName: %s,\n", indent, strconv.Quote(dir.Name))
	}
	if len(dir.Files) > 0 {
		fmt.Fprintf(buffer, "%s\tFiles: []baked.File{\n", indent)
		for _, file := range dir.Files {
			fmt.Fprintf(buffer, "%s\t\t{Name: %s, Data: []byte(%s)},\n",
				indent, strconv.Quote(file.Name), strconv.Quote(string(file.Data)))
		}
		fmt.Fprintf(buffer, "%s\t},\n", indent)
	}
	if len(dir.Dirs) > 0 {
		fmt.Fprintf(buffer, "%s\tDirs: []baked.Dir{\n", indent)
		for _, child := range dir.Dirs {
			fmt.Fprintf(buffer, "%s\t\t", indent)
			writeDir(buffer, child, depth+2)
			buffer.WriteString(",\n")
		}
		fmt.Fprintf(buffer, "%s\t},\n", indent)
	}
	fmt.Fprintf(buffer, "%s}", indent)
}
