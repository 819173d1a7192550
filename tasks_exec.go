package main

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"
)

func taskExec(ctx context.Context, rc *RunContext, attrs Attrs) error {
	command := rc.Expand(firstNonEmpty(attrs.Get("executable"), attrs.Get("value")))
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("exec needs a command")
	}
	rc.Logger.Debug("exec", "command", command)
	output, err := rc.Shell(ctx, command)
	rc.Printf("%s", output)
	if output != "" && !strings.HasSuffix(output, "\n") {
		rc.Println()
	}
	return err
}

// svn --xml documents; only the fields the tasks read are declared.
type svnStatus struct {
	Targets []struct {
		Path    string `xml:"path,attr"`
		Entries []struct {
			Path     string `xml:"path,attr"`
			WCStatus struct {
				Item string `xml:"item,attr"`
			} `xml:"wc-status"`
			ReposStatus struct {
				Item string `xml:"item,attr"`
			} `xml:"repos-status"`
		} `xml:"entry"`
	} `xml:"target"`
}

type svnInfo struct {
	Entries []struct {
		Kind string `xml:"kind,attr"`
		Path string `xml:"path,attr"`
		URL  string `xml:"url"`
	} `xml:"entry"`
}

type svnLog struct {
	Entries []svnLogEntry `xml:"logentry"`
}

type svnLogEntry struct {
	Revision int      `xml:"revision,attr"`
	Date     string   `xml:"date"`
	Msg      string   `xml:"msg"`
	Paths    []string `xml:"paths>path"`
}

func (rc *RunContext) svnXML(ctx context.Context, command string, into any) error {
	output, err := rc.Shell(ctx, command)
	if err != nil {
		return fmt.Errorf("%s: %w: %s", command, err, firstLine(output))
	}
	if err := xml.Unmarshal([]byte(output), into); err != nil {
		return fmt.Errorf("%s: parsing output: %w", command, err)
	}
	return nil
}

func (rc *RunContext) shellPrint(ctx context.Context, command string) error {
	output, err := rc.Shell(ctx, command)
	rc.Printf("%s", output)
	return err
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

func taskSVN(ctx context.Context, rc *RunContext, attrs Attrs) error {
	switch action := attrs.Get("action"); action {
	case "status":
		return svnStatusModified(ctx, rc)
	case "sync":
		return svnSync(ctx, rc)
	case "property":
		return svnProperty(ctx, rc, attrs)
	case "add":
		path := rc.Expand(attrs.Get("path"))
		if path == "" {
			return nil
		}
		command := "svn add " + path
		rc.Println(command)
		return rc.shellPrint(ctx, command)
	case "dir":
		_, err := svnDirList(ctx, rc, attrs)
		return err
	case "log":
		return svnLogReport(ctx, rc, attrs)
	default:
		return fmt.Errorf("unknown svn action %q", action)
	}
}

// svnStatusModified lists files modified in the repository since the
// working copy was updated.
func svnStatusModified(ctx context.Context, rc *RunContext) error {
	var status svnStatus
	if err := rc.svnXML(ctx, "svn status -u --xml", &status); err != nil {
		return err
	}
	var modified []string
	for _, target := range status.Targets {
		for _, entry := range target.Entries {
			if entry.ReposStatus.Item == "modified" {
				modified = append(modified, entry.Path)
			}
		}
	}
	if len(modified) > 0 {
		rc.Println("\n____ Modified Files in Repository ____")
		for _, path := range modified {
			rc.Println(path)
		}
	}
	return nil
}

// svnSync reverts local modifications, removes unversioned files and
// empty directories, and updates.
func svnSync(ctx context.Context, rc *RunContext) error {
	if err := rc.shellPrint(ctx, "svn revert . -R"); err != nil {
		return err
	}
	var status svnStatus
	if err := rc.svnXML(ctx, "svn status --xml", &status); err != nil {
		return err
	}
	for _, target := range status.Targets {
		for _, entry := range target.Entries {
			if entry.WCStatus.Item != "unversioned" {
				continue
			}
			rc.Println("Deleting:" + entry.Path)
			if err := os.Remove(entry.Path); err != nil {
				fmt.Fprintf(rc.Stderr, "Can't delete %s: %v\n", entry.Path, err)
			}
		}
	}
	return rc.shellPrint(ctx, "svn up")
}

// svnProperty sets a property when a value is given. Values holding a
// literal \n go through a temp file since svn drops newlines from the
// command line.
func svnProperty(ctx context.Context, rc *RunContext, attrs Attrs) error {
	path := rc.Expand(attrs.Get("path"))
	name := rc.Expand(attrs.Get("name"))
	value, ok := attrs.Lookup("value")
	if !ok || value == "" {
		rc.Println("Get " + name)
		return rc.shellPrint(ctx, "svn propget "+name+" "+path)
	}
	value = rc.Expand(value)

	if !strings.Contains(value, `\n`) {
		command := fmt.Sprintf("svn propset %s %q %s", name, value, path)
		rc.Println(command)
		return rc.shellPrint(ctx, command)
	}

	f, err := os.CreateTemp("", "tc-propset-*.txt")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := f.WriteString(strings.ReplaceAll(value, `\n`, "\n")); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return rc.shellPrint(ctx, "svn propset "+name+" -F "+f.Name()+" "+path)
}

// svnDirList returns the repository URLs of every directory in the
// working copy. The -r and -s switches override the recurse and src
// attributes.
func svnDirList(ctx context.Context, rc *RunContext, attrs Attrs) ([]string, error) {
	recurse := rc.Options.Recursive || isTruthy(attrs.Get("recurse"))
	src := firstNonEmpty(rc.Options.Source, rc.Expand(attrs.Get("src")), ".")

	command := "svn info " + src + " --xml"
	if recurse {
		command = "svn info -R " + src + " --xml"
	}
	rc.Println(command)
	var info svnInfo
	if err := rc.svnXML(ctx, command, &info); err != nil {
		return nil, err
	}

	rc.Println("Beginning svn folder recurse...")
	var dirs []string
	for _, entry := range info.Entries {
		if entry.Kind == "dir" {
			dirs = append(dirs, entry.URL)
		}
	}
	rc.Printf("Total svn dirs:%d\n", len(dirs))
	return dirs, nil
}

func taskSVNDir(ctx context.Context, rc *RunContext, attrs Attrs) error {
	_, err := svnDirList(ctx, rc, attrs)
	return err
}

// svnLogReport prints each revision once across all directories, then the
// set of changed paths.
func svnLogReport(ctx context.Context, rc *RunContext, attrs Attrs) error {
	dirs, err := svnDirList(ctx, rc, attrs)
	if err != nil {
		return err
	}
	rev := rc.Expand(attrs.Get("revstr"))

	revisions := map[int]svnLogEntry{}
	paths := map[string]string{}
	logs := 0
	for _, dir := range dirs {
		var log svnLog
		command := strings.Join(strings.Fields("svn log "+rev+" "+dir+" --xml --verbose"), " ")
		if err := rc.svnXML(ctx, command, &log); err != nil {
			rc.Logger.Debug("svn log skipped", "dir", dir, "error", err)
			continue
		}
		logs++
		for _, entry := range log.Entries {
			if _, seen := revisions[entry.Revision]; seen {
				continue
			}
			revisions[entry.Revision] = entry
			for _, p := range entry.Paths {
				paths[p] = ""
			}
		}
	}
	rc.Printf("Logs:%d\n", logs)

	rc.Println("___________ Logs ___________")
	revs := make([]int, 0, len(revisions))
	for r := range revisions {
		revs = append(revs, r)
	}
	sort.Ints(revs)
	for _, r := range revs {
		e := revisions[r]
		rc.Printf("Rev:%d\t%s\t%s\tFiles:%s\n", r, e.Date, e.Msg, strings.Join(e.Paths, ","))
	}
	rc.Println("___________ Files Changed ___________")
	for _, p := range sortedKeys(paths) {
		rc.Println(p)
	}
	return nil
}

var weekdays = map[string]string{
	"sunday": "0", "sun": "0",
	"monday": "1", "mon": "1",
	"tuesday": "2", "tue": "2",
	"wednesday": "3", "wed": "3",
	"thursday": "4", "thu": "4",
	"friday": "5", "fri": "5",
	"saturday": "6", "sat": "6",
}

// crontabLine renders the five schedule fields, the command and an
// optional log redirect.
func crontabLine(attrs Attrs) (schedule, line string) {
	dow := "*"
	if n, ok := weekdays[strings.ToLower(attrs.Value("dayofweek", "*"))]; ok {
		dow = n
	}
	schedule = strings.Join([]string{
		attrs.Value("min", "*"), attrs.Value("hour", "*"),
		attrs.Value("day", "*"), attrs.Value("month", "*"), dow,
	}, " ")
	line = schedule + " " + attrs.Value("cmd", "/etc/myprog")
	if log := attrs.Get("log"); log != "" {
		line += " > " + log
	}
	return schedule, line
}

func taskCrontab(_ context.Context, rc *RunContext, attrs Attrs) error {
	schedule, line := crontabLine(rc.ExpandAttrs(attrs))
	rc.Println("crontab string: " + line)
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	rc.Println("next run: " + sched.Next(rc.Now()).Format("2006-01-02 15:04"))
	return nil
}

func taskSCP(_ context.Context, rc *RunContext, attrs Attrs) error {
	bin := "scp"
	if curOS() == "win" {
		bin = "pscp"
	}
	src, dest := srcDest(rc, attrs)
	attrs = rc.ExpandAttrs(attrs)
	remote := attrs.Value("user", "root") + "@" + attrs.Get("host") + ":"
	port := attrs.Value("port", "22")

	rc.Printf("%s -P %s %s %s%s\n", bin, port, src, remote, dest)
	rc.Printf("%s -P %s %s%s %s\n", bin, port, remote, filepath.ToSlash(filepath.Join(dest, filepath.Base(src))), filepath.Base(src))
	return nil
}
