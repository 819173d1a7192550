package main

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/muesli/termenv"
)

// Built-in tag names.
const (
	TagDate             = "DATE"
	TagTime             = "TIME"
	TagFirstDay         = "FIRSTDAY"
	TagLastDay          = "LASTDAY"
	TagCounter          = "COUNTER"
	TagFoundPath        = "FOUNDPATH"
	TagAvailableTargets = "availabletargets"
)

var colorCodes = []struct {
	tag  string
	code string
}{
	{"COLOR_RED", "\033[0;31m"},
	{"COLOR_BLUE", "\033[0;34m"},
	{"COLOR_GREEN", "\033[0;32m"},
	{"COLOR_YELLOW", "\033[0;33m"},
	{"COLOR_END", "\033[m"},
}

// TagStore holds the values substituted for {NAME} references.
type TagStore struct {
	values map[string]string
}

// NewTagStore seeds the built-in tags for a run started at now. Colour
// tags are empty when color is false.
func NewTagStore(now time.Time, color bool) *TagStore {
	s := &TagStore{values: make(map[string]string)}
	s.values[TagDate] = now.Format("010206")
	s.values[TagTime] = now.Format("1504")
	s.values[TagFirstDay] = firstDay(now.Month(), now.Year())
	s.values[TagLastDay] = lastDay(now.Month(), now.Year())
	s.values[TagCounter] = "0"
	for _, c := range colorCodes {
		if color {
			s.values[c.tag] = c.code
		} else {
			s.values[c.tag] = ""
		}
	}
	return s
}

// colorSupported reports whether the environment renders ANSI colours.
func colorSupported() bool {
	return termenv.EnvColorProfile() != termenv.Ascii
}

func (s *TagStore) Get(name string) (string, bool) {
	value, ok := s.values[name]
	return value, ok
}

func (s *TagStore) Set(name, value string) {
	s.values[name] = value
}

// Names returns the tag names in sorted order.
func (s *TagStore) Names() []string {
	return sortedKeys(s.values)
}

func (s *TagStore) Snapshot() map[string]string {
	return copyMap(s.values)
}

// PropertyStore holds run-wide settings shared by every task.
type PropertyStore struct {
	values map[string]string
}

var propertyDefaults = map[string]string{
	"ignoresvndir":     "1",
	"noarchive":        "0",
	"srcPath":          "",
	"destPath":         "",
	"archiveFile":      "",
	"reportLevel":      "2",
	"reportSampleInc":  "0",
	"reportSampleFreq": "8",
	"quietmode":        "0",
	"recursive":        "0",
	"db_host":          "localhost",
	"db_username":      "root",
	"db_password":      "",
	"db_name":          "mysql",
	"db_port":          "3306",
	"db_socket":        "",
	"path_mysql":       "",
	"profile_begin_id": "0",
}

func NewPropertyStore() *PropertyStore {
	return &PropertyStore{values: copyMap(propertyDefaults)}
}

func (s *PropertyStore) Get(key string) string {
	return s.values[key]
}

func (s *PropertyStore) Lookup(key string) (string, bool) {
	value, ok := s.values[key]
	return value, ok
}

func (s *PropertyStore) Set(key, value string) {
	s.values[key] = value
}

// Int returns the property as an integer, or 0 when it is unset or not
// numeric.
func (s *PropertyStore) Int(key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s.values[key]))
	if err != nil {
		return 0
	}
	return n
}

// Bool treats "", "0", "false" and "no" as false.
func (s *PropertyStore) Bool(key string) bool {
	return isTruthy(s.values[key])
}

func (s *PropertyStore) Keys() []string {
	return sortedKeys(s.values)
}

func (s *PropertyStore) Snapshot() map[string]string {
	return copyMap(s.values)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
