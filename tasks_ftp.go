package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
)

const ftpTimeout = 30 * time.Second

// ftpConnect logs in to host and changes to dir.
func ftpConnect(ctx context.Context, rc *RunContext, host, user, password, dir string) (*ftp.ServerConn, error) {
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}
	conn, err := ftp.Dial(host, ftp.DialWithTimeout(ftpTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp connect %s: %w", host, err)
	}
	if err := conn.Login(user, password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("ftp login %s@%s: %w", user, host, err)
	}
	if dir != "" {
		if err := conn.ChangeDir(dir); err != nil {
			_ = conn.Quit()
			return nil, fmt.Errorf("ftp cwd %s: %w", dir, err)
		}
	}
	if cur, err := conn.CurrentDir(); err == nil {
		rc.Println("Current path:" + cur)
	}
	return conn, nil
}

// ftpSend stores path under its base name; servers reject full paths.
func ftpSend(conn *ftp.ServerConn, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return conn.Stor(filepath.Base(path), f)
}

// ftpSources returns the files the ftp task uploads: the src attribute,
// else the volumes of the last zip, else srcPath. A directory expands to
// the files directly inside it.
func ftpSources(rc *RunContext, attrs Attrs) ([]string, error) {
	var paths []string
	switch {
	case attrs.Get("src") != "":
		paths = []string{rc.Expand(attrs.Get("src"))}
	case rc.Props.Get("archiveList") != "":
		paths = splitList(rc.Props.Get("archiveList"))
	default:
		paths = []string{rc.Props.Get("srcPath")}
	}

	var out []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				out = append(out, filepath.Join(path, e.Name()))
			}
		}
	}
	return out, nil
}

func ftpUpload(ctx context.Context, rc *RunContext, attrs Attrs, files []string) error {
	host := rc.Expand(attrs.Get("dest"))
	if host == "" {
		return fmt.Errorf("ftp needs a dest host")
	}
	rc.Println("\nStarting ftp to " + host + "...")
	conn, err := ftpConnect(ctx, rc, host, rc.Expand(attrs.Value("username", "anonymous")), rc.Expand(attrs.Get("password")), rc.Expand(attrs.Value("dir", "bu")))
	if err != nil {
		return err
	}
	defer func() { _ = conn.Quit() }()

	sent := 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		rc.Report("Sending:"+file, 1)
		if err := ftpSend(conn, file); err != nil {
			fmt.Fprintf(rc.Stderr, "Can't send %s: %v\n", file, err)
			continue
		}
		sent++
	}
	rc.Report(fmt.Sprintf("FTPed %d files.", sent), 0)
	return nil
}

func taskFTP(ctx context.Context, rc *RunContext, attrs Attrs) error {
	files, err := ftpSources(rc, attrs)
	if err != nil {
		return err
	}
	return ftpUpload(ctx, rc, attrs, files)
}

func taskFTPList(ctx context.Context, rc *RunContext, attrs Attrs) error {
	files, err := readFileList(rc.Expand(attrs.Get("filelist")))
	if err != nil {
		return err
	}
	return ftpUpload(ctx, rc, attrs, files)
}
