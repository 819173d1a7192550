package main

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Script file names tried, in order, when no script is given.
var autorunScripts = []string{"tc_autorun.xml", "tc_autorun.yaml", "tc_autorun.yml"}

// isScriptPath reports whether path names a script by its extension.
func isScriptPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".yaml", ".yml", ".json", ".jsonc":
		return true
	}
	return false
}

// findAutorun returns the first autorun script present in dir.
func findAutorun(dir string) (string, bool) {
	for _, name := range autorunScripts {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// LoadScript reads a script document, choosing the format from the file
// extension.
func LoadScript(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrap(err, CodeScriptLoad, path)
	}
	doc, err := ParseScript(data, filepath.Ext(path))
	if err != nil {
		return nil, wrap(err, CodeScriptLoad, path)
	}
	doc.Path = path
	return doc, nil
}

// ParseScript parses data in the format named by ext (".xml", ".yaml",
// ".yml", ".json" or ".jsonc").
func ParseScript(data []byte, ext string) (*Document, error) {
	switch strings.ToLower(ext) {
	case ".xml":
		root, err := parseXML(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return &Document{Root: root, Project: findProject(root)}, nil
	case ".json", ".jsonc":
		return parseYAML(jsonc.ToJSON(data))
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported script format %q", ext)
	}
}

func parseXML(r io.Reader) (*ScriptNode, error) {
	dec := xml.NewDecoder(r)
	var root *ScriptNode
	var stack []*ScriptNode
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &ScriptNode{Kind: t.Name.Local}
			for _, a := range t.Attr {
				node.Attrs = append(node.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			} else if root == nil {
				root = node
			}
			stack = append(stack, node)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		}
	}
	if root == nil {
		return nil, fmt.Errorf("parsing xml: document has no elements")
	}
	return root, nil
}

// findProject returns the first project element, or root when there is
// none.
func findProject(root *ScriptNode) *ScriptNode {
	var found *ScriptNode
	var walk func(node *ScriptNode)
	walk = func(node *ScriptNode) {
		if found != nil {
			return
		}
		if node.Kind == "project" {
			found = node
			return
		}
		for _, child := range node.Children {
			walk(child)
		}
	}
	walk(root)
	if found == nil {
		return root
	}
	return found
}

// parseYAML converts the mapping form of a script:
//
//	default: build
//	tasks:
//	  - log: {msg: "starting"}
//	targets:
//	  build:
//	    depends: clean
//	    tasks:
//	      - copy: {src: ./src, dest: ./out}
func parseYAML(data []byte) (*Document, error) {
	var file yaml.Node
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if len(file.Content) == 0 {
		return nil, fmt.Errorf("parsing yaml: empty document")
	}
	top := file.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parsing yaml: line %d: script must be a mapping", top.Line)
	}

	project := &ScriptNode{Kind: "project"}
	var targets []*ScriptNode
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, value := top.Content[i].Value, top.Content[i+1]
		switch key {
		case "tasks":
			tasks, err := yamlTasks(value)
			if err != nil {
				return nil, err
			}
			project.Children = append(project.Children, tasks...)
		case "targets":
			parsed, err := yamlTargets(value)
			if err != nil {
				return nil, err
			}
			targets = append(targets, parsed...)
		default:
			if value.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("parsing yaml: line %d: project attribute %q must be a scalar", value.Line, key)
			}
			project.Attrs = append(project.Attrs, Attr{Name: key, Value: value.Value})
		}
	}
	project.Children = append(project.Children, targets...)
	return &Document{Root: project, Project: project}, nil
}

// yamlTargets accepts either a mapping of name to target body or a
// sequence of bodies carrying a name attribute.
func yamlTargets(node *yaml.Node) ([]*ScriptNode, error) {
	var out []*ScriptNode
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			target, err := yamlTarget(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			target.Attrs = append(Attrs{{Name: "name", Value: node.Content[i].Value}}, target.Attrs...)
			out = append(out, target)
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			target, err := yamlTarget(item)
			if err != nil {
				return nil, err
			}
			out = append(out, target)
		}
	default:
		return nil, fmt.Errorf("parsing yaml: line %d: targets must be a mapping or a list", node.Line)
	}
	return out, nil
}

func yamlTarget(node *yaml.Node) (*ScriptNode, error) {
	target := &ScriptNode{Kind: string(KindTarget)}
	if node.Kind == yaml.ScalarNode && (node.Tag == "!!null" || node.Value == "") {
		return target, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parsing yaml: line %d: target must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		if key == "tasks" {
			tasks, err := yamlTasks(value)
			if err != nil {
				return nil, err
			}
			target.Children = append(target.Children, tasks...)
			continue
		}
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("parsing yaml: line %d: target attribute %q must be a scalar", value.Line, key)
		}
		target.Attrs = append(target.Attrs, Attr{Name: key, Value: value.Value})
	}
	return target, nil
}

// yamlTasks converts a list of single-key mappings, kind: {attrs}. A
// scalar body becomes the value attribute.
func yamlTasks(node *yaml.Node) ([]*ScriptNode, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("parsing yaml: line %d: tasks must be a list", node.Line)
	}
	var out []*ScriptNode
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return nil, fmt.Errorf("parsing yaml: line %d: task must be a single-key mapping", item.Line)
		}
		task := &ScriptNode{Kind: item.Content[0].Value}
		body := item.Content[1]
		switch body.Kind {
		case yaml.ScalarNode:
			if body.Tag != "!!null" && body.Value != "" {
				task.Attrs = Attrs{{Name: "value", Value: body.Value}}
			}
		case yaml.MappingNode:
			for i := 0; i+1 < len(body.Content); i += 2 {
				key, value := body.Content[i].Value, body.Content[i+1]
				if value.Kind != yaml.ScalarNode {
					return nil, fmt.Errorf("parsing yaml: line %d: %s attribute %q must be a scalar", value.Line, task.Kind, key)
				}
				task.Attrs = append(task.Attrs, Attr{Name: key, Value: value.Value})
			}
		default:
			return nil, fmt.Errorf("parsing yaml: line %d: %s body must be a mapping or scalar", body.Line, task.Kind)
		}
		out = append(out, task)
	}
	return out, nil
}
