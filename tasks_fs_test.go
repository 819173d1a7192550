package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// newSourceTree builds a small site: two top-level files, one nested
// file and subversion metadata.
func newSourceTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "site")
	writeFile(t, filepath.Join(root, "a.txt"), "alpha")
	writeFile(t, filepath.Join(root, "b.txt"), "bravo")
	writeFile(t, filepath.Join(root, "sub", "c.txt"), "charlie")
	writeFile(t, filepath.Join(root, ".svn", "entries"), "svn")
	return root
}

// ===== COPY TESTS =====

func TestTaskCopy(t *testing.T) {
	rc, stdout, _ := newTestRunContext(t)
	src := newSourceTree(t)
	dest := filepath.Join(t.TempDir(), "out")

	if err := taskCopy(context.Background(), rc, Attrs{{"src", src}, {"dest", dest}}); err != nil {
		t.Fatalf("taskCopy() unexpected error: %v", err)
	}

	for _, rel := range []string{"a.txt", "b.txt", filepath.Join("sub", "c.txt")} {
		if _, err := os.Stat(filepath.Join(dest, rel)); err != nil {
			t.Errorf("%s not copied: %v", rel, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dest, ".svn")); !os.IsNotExist(err) {
		t.Error(".svn should be skipped while ignoresvndir is set")
	}
	if !strings.Contains(stdout.String(), "Copied 3 files (17 B)") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestTaskCopyInheritsPaths(t *testing.T) {
	rc, _, _ := newTestRunContext(t)
	src := newSourceTree(t)
	dest := filepath.Join(t.TempDir(), "out")
	rc.Props.Set("srcPath", src)
	rc.Props.Set("destPath", dest)
	rc.Props.Set("ignoresvndir", "0")

	if err := taskCopy(context.Background(), rc, nil); err != nil {
		t.Fatalf("taskCopy() unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, ".svn", "entries")); err != nil {
		t.Errorf(".svn should be copied when ignoresvndir is off: %v", err)
	}
}

func TestTaskCopyNeedsPaths(t *testing.T) {
	rc, _, _ := newTestRunContext(t)
	if err := taskCopy(context.Background(), rc, Attrs{{"src", "."}}); err == nil {
		t.Error("Expected error without dest")
	}
}

func TestTaskCopyList(t *testing.T) {
	rc, stdout, stderr := newTestRunContext(t)
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, filepath.Join(dir, "docs", "readme.txt"), "readme")
	writeFile(t, filepath.Join(dir, "list.txt"), "docs/readme.txt\nmissing.txt\n")

	attrs := Attrs{{"filelist", "list.txt"}, {"dest", "out"}}
	if err := taskCopyList(context.Background(), rc, attrs); err != nil {
		t.Fatalf("taskCopyList() unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "docs", "readme.txt")); err != nil {
		t.Errorf("listed file not copied: %v", err)
	}
	if !strings.Contains(stderr.String(), "Can't copy missing.txt") {
		t.Errorf("stderr = %q, want copy failure", stderr.String())
	}
	if !strings.Contains(stdout.String(), "Copied 1 files.") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

// ===== FILE LIST TESTS =====

func TestListTree(t *testing.T) {
	root := newSourceTree(t)
	sep := string(os.PathSeparator)

	tests := []struct {
		name      string
		recurse   bool
		ignoreSVN bool
		wantDirs  []string
		wantFiles []string
	}{
		{"Top level", false, true, []string{"sub" + sep}, []string{"a.txt", "b.txt"}},
		{"Recursive", true, true, []string{"sub" + sep}, []string{"a.txt", "b.txt", filepath.Join("sub", "c.txt")}},
		{"With svn", false, false, []string{".svn" + sep, "sub" + sep}, []string{"a.txt", "b.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dirs, files, err := listTree(root, tt.recurse, tt.ignoreSVN)
			if err != nil {
				t.Fatalf("listTree() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(dirs, tt.wantDirs) {
				t.Errorf("dirs = %v, want %v", dirs, tt.wantDirs)
			}
			if !reflect.DeepEqual(files, tt.wantFiles) {
				t.Errorf("files = %v, want %v", files, tt.wantFiles)
			}
		})
	}
}

func TestTaskCreateList(t *testing.T) {
	root := newSourceTree(t)
	sep := string(os.PathSeparator)
	ctx := context.Background()

	t.Run("Stdout", func(t *testing.T) {
		rc, stdout, _ := newTestRunContext(t)
		if err := taskCreateList(ctx, rc, Attrs{{"src", root}}); err != nil {
			t.Fatalf("taskCreateList() unexpected error: %v", err)
		}
		if want := "sub" + sep + "\na.txt\nb.txt\n"; stdout.String() != want {
			t.Errorf("stdout = %q, want %q", stdout.String(), want)
		}
	})

	t.Run("Property", func(t *testing.T) {
		rc, _, _ := newTestRunContext(t)
		rc.Props.Set("srcPath", root)
		if err := taskCreateList(ctx, rc, Attrs{{"dest", "[files]"}}); err != nil {
			t.Fatalf("taskCreateList() unexpected error: %v", err)
		}
		if got := rc.Props.Get("files"); got != "sub"+sep+"\na.txt\nb.txt" {
			t.Errorf("files property = %q", got)
		}
	})

	t.Run("Newline file", func(t *testing.T) {
		rc, stdout, _ := newTestRunContext(t)
		rc.Props.Set("recursive", "1")
		out := filepath.Join(t.TempDir(), "list.txt")
		if err := taskCreateList(ctx, rc, Attrs{{"src", root}, {"dest", out}}); err != nil {
			t.Fatalf("taskCreateList() unexpected error: %v", err)
		}
		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatalf("Failed to read list: %v", err)
		}
		want := strings.Join([]string{"sub" + sep, "a.txt", "b.txt", filepath.Join("sub", "c.txt")}, "\n")
		if string(data) != want {
			t.Errorf("list = %q, want %q", data, want)
		}
		if !strings.Contains(stdout.String(), "File list output complete to:"+out) {
			t.Errorf("stdout = %q", stdout.String())
		}
	})

	t.Run("Comma file", func(t *testing.T) {
		rc, _, _ := newTestRunContext(t)
		out := filepath.Join(t.TempDir(), "list.csv")
		if err := taskCreateList(ctx, rc, Attrs{{"src", root}, {"dest", out}, {"type", "comma"}}); err != nil {
			t.Fatalf("taskCreateList() unexpected error: %v", err)
		}
		data, _ := os.ReadFile(out)
		if want := "sub" + sep + "\na.txt,b.txt\n"; string(data) != want {
			t.Errorf("csv = %q, want %q", data, want)
		}
	})
}

// ===== DIRECTORY TESTS =====

func TestFindAbove(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatalf("Failed to create dirs: %v", err)
	}
	writeFile(t, filepath.Join(root, "a", "configuration.php"), "<?php")

	dir, ok := findAbove(deep, "configuration.php")
	if !ok || dir != filepath.Join(root, "a") {
		t.Errorf("findAbove() = %q, %v; want %q", dir, ok, filepath.Join(root, "a"))
	}
	if _, ok := findAbove(deep, "nothing-here.txt"); ok {
		t.Error("findAbove() found a file that does not exist")
	}

	rc, stdout, _ := newTestRunContext(t)
	if err := taskFindAbove(context.Background(), rc, Attrs{{"src", deep}, {"filename", "configuration.php"}}); err != nil {
		t.Fatalf("taskFindAbove() unexpected error: %v", err)
	}
	if got, _ := rc.Tags.Get(TagFoundPath); got != filepath.Join(root, "a") {
		t.Errorf("FOUNDPATH = %q", got)
	}
	if !strings.Contains(stdout.String(), "Found at:") {
		t.Errorf("stdout = %q", stdout.String())
	}
	if err := taskFindAbove(context.Background(), rc, Attrs{{"src", deep}, {"filename", "nothing-here.txt"}}); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestTaskMkDirAndWorkingDir(t *testing.T) {
	rc, _, _ := newTestRunContext(t)
	dir := t.TempDir()
	chdir(t, dir)
	rc.Tags.Set("SITE", "example")

	if err := taskMkDir(context.Background(), rc, Attrs{{"value", "bu/{SITE}/{DATE}"}}); err != nil {
		t.Fatalf("taskMkDir() unexpected error: %v", err)
	}
	target := filepath.Join(dir, "bu", "example", "030524")
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}

	if err := taskWorkingDir(context.Background(), rc, Attrs{{"value", "bu/example"}}); err != nil {
		t.Fatalf("taskWorkingDir() unexpected error: %v", err)
	}
	wd, _ := os.Getwd()
	want, _ := filepath.EvalSymlinks(filepath.Join(dir, "bu", "example"))
	if got, _ := filepath.EvalSymlinks(wd); got != want {
		t.Errorf("working dir = %q, want %q", got, want)
	}

	if err := taskWorkingDir(context.Background(), rc, Attrs{{"value", "no/such/dir"}}); err == nil {
		t.Error("Expected error for missing directory")
	}
}

// ===== ARCHIVE TESTS =====

func TestTaskZip(t *testing.T) {
	rc, stdout, _ := newTestRunContext(t)
	src := newSourceTree(t)
	dest := t.TempDir()

	attrs := Attrs{{"src", src}, {"dest", dest}, {"archiveFile", "site_{DATE}"}}
	if err := taskZip(context.Background(), rc, attrs); err != nil {
		t.Fatalf("taskZip() unexpected error: %v", err)
	}

	volume := filepath.Join(dest, "site_030524_1.zip")
	if got := rc.Props.Get("archiveList"); got != volume {
		t.Errorf("archiveList = %q, want %q", got, volume)
	}
	r, err := zip.OpenReader(volume)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer func() { _ = r.Close() }()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	if want := []string{"a.txt", "b.txt", "sub/c.txt"}; !reflect.DeepEqual(names, want) {
		t.Errorf("entries = %v, want %v", names, want)
	}
	if !strings.Contains(stdout.String(), "Archived 3 files (17 B) into 1 volume(s)") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestTaskZipVolumes(t *testing.T) {
	saved := zipVolumeLimit
	zipVolumeLimit = 1
	t.Cleanup(func() { zipVolumeLimit = saved })

	rc, _, _ := newTestRunContext(t)
	src := filepath.Join(t.TempDir(), "media")
	writeFile(t, filepath.Join(src, "one.txt"), strings.Repeat("x", 512))
	writeFile(t, filepath.Join(src, "photo.jpg"), string(bytes.Repeat([]byte{0xff, 0xd8}, 256)))
	writeFile(t, filepath.Join(src, "two.txt"), strings.Repeat("y", 512))
	dest := t.TempDir()
	rc.Props.Set("archiveFile", "media")

	if err := taskZip(context.Background(), rc, Attrs{{"src", src}, {"dest", dest}}); err != nil {
		t.Fatalf("taskZip() unexpected error: %v", err)
	}

	volumes := splitList(rc.Props.Get("archiveList"))
	if len(volumes) != 3 {
		t.Fatalf("archiveList = %v, want 3 volumes", volumes)
	}
	for i, volume := range volumes {
		r, err := zip.OpenReader(volume)
		if err != nil {
			t.Fatalf("Failed to open volume %d: %v", i+1, err)
		}
		if len(r.File) != 1 {
			t.Errorf("volume %d holds %d files, want 1", i+1, len(r.File))
		}
		if r.File[0].Name == "photo.jpg" && r.File[0].Method != zip.Store {
			t.Errorf("photo.jpg method = %d, want stored", r.File[0].Method)
		}
		_ = r.Close()
	}
}

func TestTaskZipNoArchive(t *testing.T) {
	rc, stdout, _ := newTestRunContext(t)
	rc.Props.Set("noarchive", "1")
	dest := t.TempDir()

	attrs := Attrs{{"src", newSourceTree(t)}, {"dest", dest}, {"archiveFile", "site"}}
	if err := taskZip(context.Background(), rc, attrs); err != nil {
		t.Fatalf("taskZip() unexpected error: %v", err)
	}
	entries, _ := os.ReadDir(dest)
	if len(entries) != 0 {
		t.Errorf("noarchive still wrote %d files", len(entries))
	}
	if !strings.Contains(stdout.String(), "Archiving disabled") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestTaskZipNeedsArchiveName(t *testing.T) {
	rc, _, _ := newTestRunContext(t)
	err := taskZip(context.Background(), rc, Attrs{{"src", "."}, {"dest", t.TempDir()}})
	if err == nil || !strings.Contains(err.Error(), "archiveFile") {
		t.Errorf("taskZip() error = %v, want archiveFile complaint", err)
	}
}

// ===== FTP TESTS =====

func TestFTPSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bu", "a_1.zip"), "1")
	writeFile(t, filepath.Join(dir, "bu", "a_2.zip"), "2")
	writeFile(t, filepath.Join(dir, "bu", "nested", "skip.zip"), "3")
	one := filepath.Join(dir, "bu", "a_1.zip")
	two := filepath.Join(dir, "bu", "a_2.zip")

	tests := []struct {
		name  string
		attrs Attrs
		props map[string]string
		want  []string
	}{
		{"Src attribute", Attrs{{"src", one}}, nil, []string{one}},
		{"Last archive", nil, map[string]string{"archiveList": one + "," + two}, []string{one, two}},
		{"Directory expands to files", nil, map[string]string{"srcPath": filepath.Join(dir, "bu")}, []string{one, two}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, _, _ := newTestRunContext(t)
			for k, v := range tt.props {
				rc.Props.Set(k, v)
			}
			got, err := ftpSources(rc, tt.attrs)
			if err != nil {
				t.Fatalf("ftpSources() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ftpSources() = %v, want %v", got, tt.want)
			}
		})
	}

	rc, _, _ := newTestRunContext(t)
	if _, err := ftpSources(rc, Attrs{{"src", filepath.Join(dir, "missing.zip")}}); err == nil {
		t.Error("Expected error for missing source")
	}
}

func TestTaskFTPConnectFailure(t *testing.T) {
	rc, stdout, _ := newTestRunContext(t)
	file := filepath.Join(t.TempDir(), "a.zip")
	writeFile(t, file, "zip")

	err := taskFTP(context.Background(), rc, Attrs{{"src", file}, {"dest", "127.0.0.1:1"}})
	if err == nil || !strings.Contains(err.Error(), "ftp connect") {
		t.Errorf("taskFTP() error = %v, want connect failure", err)
	}
	if !strings.Contains(stdout.String(), "Starting ftp to 127.0.0.1:1...") {
		t.Errorf("stdout = %q", stdout.String())
	}

	if err := taskFTP(context.Background(), rc, Attrs{{"src", file}}); err == nil {
		t.Error("Expected error without dest host")
	}
}
