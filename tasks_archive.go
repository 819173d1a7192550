package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
)

// zipVolumeLimit is the compressed size after which a new volume starts.
var zipVolumeLimit int64 = 600 * 1000 * 1000

// storedExts are already compressed and are stored, not deflated.
var storedExts = map[string]bool{
	".jpg": true, ".ppt": true, ".gif": true, ".mov": true,
	".avi": true, ".mp3": true, ".swf": true,
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// volumeWriter writes numbered zip volumes base_1.zip, base_2.zip, ...
type volumeWriter struct {
	base    string
	limit   int64
	volumes []string

	file  *os.File
	count *countingWriter
	zw    *zip.Writer
}

func (v *volumeWriter) open() error {
	name := fmt.Sprintf("%s_%d.zip", v.base, len(v.volumes)+1)
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	v.file = f
	v.count = &countingWriter{w: f}
	v.zw = zip.NewWriter(v.count)
	v.volumes = append(v.volumes, name)
	return nil
}

func (v *volumeWriter) close() error {
	if v.zw == nil {
		return nil
	}
	err := v.zw.Close()
	if cerr := v.file.Close(); err == nil {
		err = cerr
	}
	v.zw, v.file, v.count = nil, nil, nil
	return err
}

// add writes one file, rolling over to a new volume first when the
// current one has passed the limit.
func (v *volumeWriter) add(path, name string, info fs.FileInfo) (int64, error) {
	if v.zw != nil && v.count.n >= v.limit {
		if err := v.close(); err != nil {
			return 0, err
		}
	}
	if v.zw == nil {
		if err := v.open(); err != nil {
			return 0, err
		}
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	header.Name = filepath.ToSlash(name)
	header.Method = zip.Deflate
	if storedExts[strings.ToLower(filepath.Ext(name))] {
		header.Method = zip.Store
	}
	w, err := v.zw.CreateHeader(header)
	if err != nil {
		return 0, err
	}
	in, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()
	if _, err := io.Copy(w, in); err != nil {
		return 0, err
	}
	// Flush so the counter sees this entry's compressed bytes.
	if err := v.zw.Flush(); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func taskZip(_ context.Context, rc *RunContext, attrs Attrs) error {
	if rc.Props.Bool("noarchive") {
		rc.Println("Archiving disabled by noarchive property.")
		return nil
	}
	src, dest := srcDest(rc, attrs)
	archive := firstNonEmpty(rc.Expand(attrs.Get("archiveFile")), rc.Props.Get("archiveFile"))
	if src == "" || dest == "" || archive == "" {
		return fmt.Errorf("zip needs src, dest and archiveFile")
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	vw := &volumeWriter{base: filepath.Join(dest, archive), limit: zipVolumeLimit}
	var files int
	var total int64
	err := walkFiles(src, true, rc.Props.Bool("ignoresvndir"), func(path, rel string, d fs.DirEntry) error {
		info, err := d.Info()
		if err != nil {
			return err
		}
		rc.Report("Adding file:"+rel, 1)
		n, err := vw.add(path, rel, info)
		if err != nil {
			return fmt.Errorf("adding %s: %w", path, err)
		}
		files++
		total += n
		return nil
	})
	if cerr := vw.close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	rc.Props.Set("archiveList", strings.Join(vw.volumes, ","))
	rc.Printf("\nArchived %d files (%s) into %d volume(s)\n", files, humanize.Bytes(uint64(total)), len(vw.volumes))
	return nil
}
