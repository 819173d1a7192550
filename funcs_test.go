package main

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// ===== TEMPLATING TESTS =====

func TestExpand(t *testing.T) {
	tags := NewTagStore(testNow, false)
	tags.Set("SITE", "example.org")
	tags.Set("NESTED", "{SITE}")
	tags.Set("EMPTY", "")

	tests := []struct {
		name string
		text string
		want string
	}{
		{"No placeholders", "plain text", "plain text"},
		{"Single tag", "http://{SITE}/", "http://example.org/"},
		{"Repeated tag", "{SITE}{SITE}", "example.orgexample.org"},
		{"Built-in date", "backup_{DATE}", "backup_030524"},
		{"Built-in time", "{TIME}", "1407"},
		{"Unknown tag left verbatim", "{MISSING}/x", "{MISSING}/x"},
		{"Mixed known and unknown", "{SITE}-{MISSING}", "example.org-{MISSING}"},
		{"Substituted value is not rescanned", "{NESTED}", "{SITE}"},
		{"Empty value", "[{EMPTY}]", "[]"},
		{"Unbalanced brace", "{SITE", "{SITE"},
		{"Not an identifier", "{not valid}", "{not valid}"},
		{"Empty braces", "{}", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tags.Expand(tt.text); got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{" a , b ,c", []string{"a", "b", "c"}},
		{"a,,b,", []string{"a", "b"}},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// ===== STORE TESTS =====

func TestNewTagStore(t *testing.T) {
	tags := NewTagStore(testNow, false)

	want := map[string]string{
		TagDate:     "030524",
		TagTime:     "1407",
		TagFirstDay: "2024-03-01",
		TagLastDay:  "2024-03-31",
		TagCounter:  "0",
		"COLOR_RED": "",
	}
	for name, value := range want {
		got, ok := tags.Get(name)
		if !ok || got != value {
			t.Errorf("tag %s = %q (present %v), want %q", name, got, ok, value)
		}
	}

	colored := NewTagStore(testNow, true)
	if got, _ := colored.Get("COLOR_END"); got != "\033[m" {
		t.Errorf("COLOR_END = %q, want reset sequence", got)
	}
}

func TestPropertyStoreDefaults(t *testing.T) {
	props := NewPropertyStore()

	if !props.Bool("ignoresvndir") {
		t.Error("ignoresvndir should default on")
	}
	if props.Bool("noarchive") {
		t.Error("noarchive should default off")
	}
	if got := props.Int("reportLevel"); got != 2 {
		t.Errorf("reportLevel = %d, want 2", got)
	}
	if got := props.Get("db_port"); got != "3306" {
		t.Errorf("db_port = %q, want 3306", got)
	}

	props.Set("reportLevel", "not a number")
	if got := props.Int("reportLevel"); got != 0 {
		t.Errorf("Int() of non-numeric = %d, want 0", got)
	}

	other := NewPropertyStore()
	props.Set("db_host", "changed")
	if other.Get("db_host") != "localhost" {
		t.Error("Stores share their defaults map")
	}
}

func TestReport(t *testing.T) {
	tests := []struct {
		name  string
		level string
		calls int
		want  string
	}{
		{"Level 1 prints every message", "1", 2, "msg\nmsg\n"},
		{"Level 3 prints dots", "3", 3, "..."},
		{"Level 2 samples", "2", 3, "\n#0:sample: msg\n.."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, stdout, _ := newTestRunContext(t)
			rc.Props.Set("reportLevel", tt.level)
			for i := 0; i < tt.calls; i++ {
				rc.Report("msg", 0)
			}
			if got := stdout.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

// ===== HELPER FUNCTION TESTS =====

func TestMonthBounds(t *testing.T) {
	tests := []struct {
		month      time.Month
		year       int
		first, end string
	}{
		{time.February, 2024, "2024-02-01", "2024-02-29"},
		{time.February, 2023, "2023-02-01", "2023-02-28"},
		{time.December, 2023, "2023-12-01", "2023-12-31"},
	}
	for _, tt := range tests {
		if got := firstDay(tt.month, tt.year); got != tt.first {
			t.Errorf("firstDay(%v, %d) = %s, want %s", tt.month, tt.year, got, tt.first)
		}
		if got := lastDay(tt.month, tt.year); got != tt.end {
			t.Errorf("lastDay(%v, %d) = %s, want %s", tt.month, tt.year, got, tt.end)
		}
	}
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"", "0", "false", "No", " off "} {
		if isTruthy(v) {
			t.Errorf("isTruthy(%q) = true", v)
		}
	}
	for _, v := range []string{"1", "yes", "true", "on", "2"} {
		if !isTruthy(v) {
			t.Errorf("isTruthy(%q) = false", v)
		}
	}
}

func TestReadFileList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	writeFile(t, path, "a.txt\n\n  b/c.txt  \n")

	got, err := readFileList(path)
	if err != nil {
		t.Fatalf("readFileList() unexpected error: %v", err)
	}
	if want := []string{"a.txt", "b/c.txt"}; !reflect.DeepEqual(got, want) {
		t.Errorf("readFileList() = %v, want %v", got, want)
	}

	if _, err := readFileList(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected error for missing list")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "  ", "x", "y"); got != "x" {
		t.Errorf("firstNonEmpty() = %q, want x", got)
	}
	if got := firstNonEmpty(); got != "" {
		t.Errorf("firstNonEmpty() = %q, want empty", got)
	}
}

// ===== BENCHMARKS =====

func BenchmarkExpand(b *testing.B) {
	tags := NewTagStore(testNow, false)
	tags.Set("SITE", "example.org")
	text := "backup of {SITE} on {DATE} at {TIME} into {MISSING}/bu"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tags.Expand(text)
	}
}

func BenchmarkSplitList(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		splitList("clean, fetch ,compile,, package, notify")
	}
}
