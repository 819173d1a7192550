package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// copyFile copies src to dest, creating dest's directory.
func copyFile(src, dest string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// walkFiles calls fn for every regular file under root with its path
// relative to root. Subversion metadata is skipped when ignoreSVN is
// set; subdirectories are entered only when recurse is set.
func walkFiles(root string, recurse, ignoreSVN bool, fn func(path, rel string, d fs.DirEntry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if (ignoreSVN && isSVNDir(path)) || !recurse {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return fn(path, rel, d)
	})
}

func taskCopy(_ context.Context, rc *RunContext, attrs Attrs) error {
	src, dest := srcDest(rc, attrs)
	if src == "" || dest == "" {
		return fmt.Errorf("copy needs src and dest")
	}

	var count int
	var total int64
	err := walkFiles(src, true, rc.Props.Bool("ignoresvndir"), func(path, rel string, _ fs.DirEntry) error {
		target := filepath.Join(dest, rel)
		rc.Report("Copying file:"+path+" to: "+target, 0)
		n, err := copyFile(path, target)
		if err != nil {
			fmt.Fprintf(rc.Stderr, "Can't copy %s to %s: %v\n", path, target, err)
			return nil
		}
		count++
		total += n
		return nil
	})
	if err != nil {
		return err
	}
	rc.Printf("\nCopied %d files (%s)\n", count, humanize.Bytes(uint64(total)))
	return nil
}

func taskCopyList(_ context.Context, rc *RunContext, attrs Attrs) error {
	files, err := readFileList(rc.Expand(attrs.Get("filelist")))
	if err != nil {
		return err
	}
	_, dest := srcDest(rc, attrs)
	if dest == "" {
		return fmt.Errorf("copylist needs dest")
	}

	count := 0
	for _, file := range files {
		target := filepath.Join(dest, file)
		rc.Report("Copying file:"+file+" to: "+target, 0)
		if _, err := copyFile(file, target); err != nil {
			fmt.Fprintf(rc.Stderr, "Can't copy %s to %s: %v\n", file, target, err)
			continue
		}
		count++
	}
	rc.Report(fmt.Sprintf("Copied %d files.", count), 0)
	return nil
}

// listTree returns the directories (with a trailing separator) and files
// under root, relative to root.
func listTree(root string, recurse, ignoreSVN bool) (dirs, files []string, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if ignoreSVN && isSVNDir(path) {
				return filepath.SkipDir
			}
			dirs = append(dirs, rel+string(os.PathSeparator))
			if !recurse {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, rel)
		return nil
	})
	return dirs, files, err
}

func taskCreateList(_ context.Context, rc *RunContext, attrs Attrs) error {
	src := firstNonEmpty(rc.Expand(attrs.Get("src")), rc.Props.Get("srcPath"), ".")
	dest := rc.Expand(attrs.Get("dest"))
	dirs, files, err := listTree(src, rc.Props.Bool("recursive"), rc.Props.Bool("ignoresvndir"))
	if err != nil {
		return err
	}
	entries := append(append([]string{}, dirs...), files...)

	switch {
	case dest == "":
		for _, entry := range entries {
			rc.Println(entry)
		}
		return nil
	case strings.HasPrefix(dest, "[") && strings.HasSuffix(dest, "]"):
		name := dest[1 : len(dest)-1]
		rc.Println("Setting property:" + name)
		rc.Props.Set(name, strings.Join(entries, "\n"))
		return nil
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	switch attrs.Value("type", "newline") {
	case "comma":
		w := csv.NewWriter(f)
		if err := w.WriteAll([][]string{dirs, files}); err != nil {
			return err
		}
	default:
		if _, err := io.WriteString(f, strings.Join(entries, "\n")); err != nil {
			return err
		}
	}
	rc.Println("File list output complete to:" + dest)
	return f.Close()
}

// findAbove looks for filename in start and up to nine parents and
// returns the directory holding it.
func findAbove(start, filename string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for i := 0; i < 10; i++ {
		if info, err := os.Stat(filepath.Join(dir, filename)); err == nil && !info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

func taskFindAbove(_ context.Context, rc *RunContext, attrs Attrs) error {
	filename := rc.Expand(attrs.Get("filename"))
	start := firstNonEmpty(rc.Expand(attrs.Get("src")), ".")
	dir, ok := findAbove(start, filename)
	if !ok {
		return fmt.Errorf("can't find file:%s", filename)
	}
	rc.Println("Found at:" + filepath.Join(dir, filename))
	rc.Tags.Set(TagFoundPath, dir)
	return nil
}

func taskMkDir(_ context.Context, rc *RunContext, attrs Attrs) error {
	dir, err := filepath.Abs(rc.Expand(attrs.Get("value")))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directory: %s -- %w", dir, err)
	}
	return nil
}

func taskWorkingDir(_ context.Context, rc *RunContext, attrs Attrs) error {
	dir, err := filepath.Abs(rc.Expand(attrs.Value("value", "./")))
	if err != nil {
		return err
	}
	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("can't change to directory %s: %w", dir, err)
	}
	rc.Report("Changed to directory:"+dir, 0)
	return nil
}
