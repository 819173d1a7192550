package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// TargetInfo summarizes one target for the list command.
type TargetInfo struct {
	Name    string   `json:"name" yaml:"name"`
	Tasks   int      `json:"tasks" yaml:"tasks"`
	Before  []string `json:"before,omitempty" yaml:"before,omitempty"`
	After   string   `json:"after,omitempty" yaml:"after,omitempty"`
	Comment string   `json:"description,omitempty" yaml:"description,omitempty"`
}

func targetInfos(table TargetTable) []TargetInfo {
	infos := make([]TargetInfo, 0, len(table))
	for _, name := range table.Names() {
		node, _ := table.Lookup(name)
		tasks := 0
		for _, child := range node.Children {
			if child.Kind != string(KindTarget) {
				tasks++
			}
		}
		infos = append(infos, TargetInfo{
			Name:    name,
			Tasks:   tasks,
			Before:  splitList(beforeTargets(node)),
			After:   strings.TrimSpace(afterTarget(node)),
			Comment: firstNonEmpty(node.Attr("description"), node.Attr("comment")),
		})
	}
	return infos
}

var listHeader = lipgloss.NewStyle().Bold(true)

func listTargets(w io.Writer, table TargetTable, format string) error {
	switch format {
	case "json":
		return listTargetsJSON(w, table)
	case "yaml":
		return listTargetsYAML(w, table)
	default: // table
		return listTargetsTable(w, table)
	}
}

func listTargetsTable(w io.Writer, table TargetTable) error {
	fmt.Fprintln(w, listHeader.Render("Available targets:"))
	fmt.Fprintln(w, "------------------")

	infos := targetInfos(table)
	if len(infos) == 0 {
		fmt.Fprintln(w, "No targets found")
		return nil
	}

	maxNameLen := 0
	for _, info := range infos {
		if len(info.Name) > maxNameLen {
			maxNameLen = len(info.Name)
		}
	}

	for _, info := range infos {
		padding := strings.Repeat(" ", maxNameLen-len(info.Name)+2)
		line := fmt.Sprintf("  %s%s%d tasks", info.Name, padding, info.Tasks)
		if len(info.Before) > 0 {
			line += fmt.Sprintf(" (depends: %s)", strings.Join(info.Before, ", "))
		}
		if info.After != "" {
			line += fmt.Sprintf(" (then: %s)", info.After)
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "\nTotal: %d targets\n", len(infos))
	return nil
}

func listTargetsJSON(w io.Writer, table TargetTable) error {
	infos := targetInfos(table)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{
		"targets": infos,
		"total":   len(infos),
	})
}

func listTargetsYAML(w io.Writer, table TargetTable) error {
	infos := targetInfos(table)
	encoder := yaml.NewEncoder(w)
	defer func() { _ = encoder.Close() }()
	return encoder.Encode(map[string]any{
		"targets": infos,
		"total":   len(infos),
	})
}
