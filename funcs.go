package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// firstDay returns the first day of month as YYYY-MM-DD.
func firstDay(month time.Month, year int) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

// lastDay returns the last day of month as YYYY-MM-DD.
func lastDay(month time.Month, year int) string {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "0", "false", "no", "off":
		return false
	}
	return true
}

// curOS maps GOOS onto the three platforms the tasks distinguish.
func curOS() string {
	switch runtime.GOOS {
	case "darwin":
		return "mac"
	case "windows":
		return "win"
	default:
		return "linux"
	}
}

// readFileList reads a list file, one path per line, skipping blanks.
func readFileList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't read filelist(%s): %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out, scanner.Err()
}

// firstNonEmpty returns the first argument that is not blank.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// isSVNDir reports whether a walked directory is subversion metadata.
func isSVNDir(path string) bool {
	return filepath.Base(path) == ".svn"
}
