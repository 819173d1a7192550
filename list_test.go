package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const listScript = `<project default="all">
  <target name="clean" description="Remove build output"><mkdir value="./out"/></target>
  <target name="all" depends="clean, fetch" default="notify">
    <copy src="./a" dest="./b"/>
    <zip/>
    <target name="nested"/>
  </target>
  <target name="notify"/>
</project>`

func listTable(t *testing.T) TargetTable {
	t.Helper()
	return BuildTargetTable(mustParseXML(t, listScript), NewTagStore(testNow, false))
}

// ===== LIST OUTPUT TESTS =====

func TestTargetInfos(t *testing.T) {
	infos := targetInfos(listTable(t))
	if len(infos) != 4 {
		t.Fatalf("targetInfos() returned %d entries, want 4", len(infos))
	}
	all := infos[0]
	if all.Name != "all" || all.Tasks != 2 || all.After != "notify" {
		t.Errorf("all = %+v", all)
	}
	if strings.Join(all.Before, ",") != "clean,fetch" {
		t.Errorf("all.Before = %v", all.Before)
	}
	if infos[1].Comment != "Remove build output" {
		t.Errorf("clean.Comment = %q", infos[1].Comment)
	}
}

func TestListTargetsTable(t *testing.T) {
	var buf bytes.Buffer
	if err := listTargets(&buf, listTable(t), "table"); err != nil {
		t.Fatalf("listTargets() unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Available targets:",
		"  all     2 tasks (depends: clean, fetch) (then: notify)",
		"  notify  0 tasks",
		"Total: 4 targets",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := listTargets(&buf, TargetTable{}, ""); err != nil {
		t.Fatalf("listTargets() unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No targets found") {
		t.Errorf("empty table output = %q", buf.String())
	}
}

func TestListTargetsJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := listTargets(&buf, listTable(t), "json"); err != nil {
		t.Fatalf("listTargets() unexpected error: %v", err)
	}
	var result struct {
		Targets []TargetInfo `json:"targets"`
		Total   int          `json:"total"`
	}
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if result.Total != 4 || result.Targets[3].Name != "notify" {
		t.Errorf("result = %+v", result)
	}
}

func TestListTargetsYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := listTargets(&buf, listTable(t), "yaml"); err != nil {
		t.Fatalf("listTargets() unexpected error: %v", err)
	}
	var result struct {
		Targets []TargetInfo `yaml:"targets"`
		Total   int          `yaml:"total"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode YAML: %v", err)
	}
	if result.Total != 4 || result.Targets[0].After != "notify" {
		t.Errorf("result = %+v", result)
	}
}
