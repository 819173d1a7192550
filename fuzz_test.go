//go:build go1.18
// +build go1.18

package main

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// ===== FUZZ TESTS FOR OPERATOR-CONTROLLED INPUT =====

// FuzzExpand checks that tag substitution never panics and never rescans
// substituted values.
func FuzzExpand(f *testing.F) {
	f.Add("backup_{DATE}")
	f.Add("{SITE}{SITE}")
	f.Add("{")
	f.Add("}")
	f.Add("{}")
	f.Add("{{SITE}}")
	f.Add("{SITE")
	f.Add("{not valid}")
	f.Add("{LOOP}")
	f.Add(strings.Repeat("{SITE}", 100))

	tags := NewTagStore(testNow, false)
	tags.Set("SITE", "example.org")
	tags.Set("LOOP", "{LOOP}")

	f.Fuzz(func(t *testing.T, text string) {
		if !utf8.ValidString(text) {
			t.Skip("Invalid UTF-8 input")
		}
		if len(text) > 10000 {
			t.Skip("Input too long")
		}

		defer func() {
			if r := recover(); r != nil {
				t.Errorf("Expand panicked with input %q: %v", text, r)
			}
		}()

		got := tags.Expand(text)
		if !strings.Contains(text, "{") && got != text {
			t.Errorf("Expand(%q) = %q, text without braces must be unchanged", text, got)
		}
		if text == "{LOOP}" && got != "{LOOP}" {
			t.Errorf("self-referencing tag was rescanned: %q", got)
		}
	})
}

// FuzzBindPositional checks that command-line binding always yields one
// attribute per parameter.
func FuzzBindPositional(f *testing.F) {
	f.Add("a b c d")
	f.Add("")
	f.Add("./site ../production")

	params := ParameterSet{param("src", "."), param("dest", ""), param("type", "newline")}

	f.Fuzz(func(t *testing.T, line string) {
		attrs := params.BindPositional(strings.Fields(line))
		if len(attrs) != len(params) {
			t.Fatalf("BindPositional() returned %d attrs, want %d", len(attrs), len(params))
		}
		for i, attr := range attrs {
			if attr.Name != params[i].Name {
				t.Errorf("attr %d = %q, want %q", i, attr.Name, params[i].Name)
			}
		}
	})
}

// FuzzParseScript checks that malformed scripts return errors rather than
// panic, in every supported format.
func FuzzParseScript(f *testing.F) {
	f.Add([]byte(`<project default="a"><target name="a"><log msg="x"/></target></project>`), ".xml")
	f.Add([]byte("default: a\ntargets:\n  a:\n    tasks:\n      - log: {msg: x}\n"), ".yaml")
	f.Add([]byte(`{"targets": {"a": {"tasks": [{"log": "x"}]}}}`), ".json")
	f.Add([]byte("<project><unclosed></project>"), ".xml")
	f.Add([]byte("tasks: [1, 2"), ".yml")
	f.Add([]byte{}, ".jsonc")

	f.Fuzz(func(t *testing.T, data []byte, ext string) {
		if len(data) > 64*1024 {
			t.Skip("Input too long")
		}

		defer func() {
			if r := recover(); r != nil {
				t.Errorf("ParseScript panicked with %s input %q: %v", ext, data, r)
			}
		}()

		doc, err := ParseScript(data, ext)
		if err != nil {
			return
		}
		if doc.Project == nil {
			t.Fatal("ParseScript() returned a document without a project node")
		}
		// Building and validating the table must also be safe.
		tags := NewTagStore(testNow, false)
		BuildTargetTable(doc, tags).Validate(doc.Project, tags)
	})
}
