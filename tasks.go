package main

import (
	"context"
	"fmt"
	"strings"
)

// TaskKind names one task type. The set is closed: registerCoreCommands
// registers every kind below except KindTarget, which is structural.
type TaskKind string

const (
	KindTarget     TaskKind = "target"
	KindCopy       TaskKind = "copy"
	KindCopyList   TaskKind = "copylist"
	KindCreateList TaskKind = "createlist"
	KindFindAbove  TaskKind = "findabove"
	KindMkDir      TaskKind = "mkdir"
	KindWorkingDir TaskKind = "workingdir"
	KindZip        TaskKind = "zip"
	KindFTP        TaskKind = "ftp"
	KindFTPList    TaskKind = "ftplist"
	KindExec       TaskKind = "exec"
	KindSVN        TaskKind = "svn"
	KindSVNDir     TaskKind = "svndir"
	KindCrontab    TaskKind = "crontab"
	KindSCP        TaskKind = "scp"
	KindJoomla     TaskKind = "joomla"
	KindMySQL      TaskKind = "mysql"
	KindDBSummary  TaskKind = "dbsummary"
	KindLog        TaskKind = "log"
	KindEmail      TaskKind = "email"
	KindMD5        TaskKind = "md5"
	KindSHA1       TaskKind = "sha1"
	KindBLAKE3     TaskKind = "blake3"
	KindPause      TaskKind = "pause"
	KindInput      TaskKind = "input"
	KindProperty   TaskKind = "property"
	KindTag        TaskKind = "tag"
	KindDumpState  TaskKind = "dumpstate"
	KindExamples   TaskKind = "examples"
)

func param(name, def string) Param { return Param{Name: name, Default: def} }

// newRegistry returns a registry holding every core command.
func newRegistry() *Registry {
	r := NewRegistry()
	registerCoreCommands(r)
	return r
}

func registerCoreCommands(r *Registry) {
	r.AddExample("", "todocopy", "Execute tc_autorun.xml")
	r.AddExample("", "todocopy example_exec.xml", "Execute XML script/macro")
	r.AddExample("", "todocopy example_exec.xml target1", "Execute target1 in XML script")

	r.RegisterCommand(KindCopy, SurfaceBoth, taskCopy, param("src", ""), param("dest", ""))
	r.AddExample("copy", "todocopy copy ./ ../production", "Copy files from -> to")
	r.RegisterCommand(KindCopyList, SurfaceBoth, taskCopyList, param("filelist", ""), param("dest", ""))
	r.AddExample("copylist", "todocopy copylist filelist.txt ../production", "Copy all files in list with automatic path creation")
	r.RegisterCommand(KindCreateList, SurfaceBoth, taskCreateList, param("src", ""), param("dest", ""), param("type", "newline"))
	r.AddExample("createlist", "todocopy createlist -r .", "Display a list of all files (recursive) in the current dir")
	r.AddExample("createlist", "todocopy createlist -r . filelist.txt", "Output a list of all files (recursive) in the current dir")
	r.RegisterCommand(KindFindAbove, SurfaceBoth, taskFindAbove, param("src", ""), param("filename", ""))
	r.RegisterCommand(KindMkDir, SurfaceBoth, taskMkDir, param("value", ""))
	r.RegisterCommand(KindWorkingDir, SurfaceBoth, taskWorkingDir, param("value", "./"))
	r.RegisterCommand(KindZip, SurfaceBoth, taskZip, param("src", ""), param("dest", ""), param("archiveFile", ""))
	r.AddExample("zip", "todocopy zip ./site ./backup site_{DATE}", "Archive a directory into numbered zip volumes")

	r.RegisterCommand(KindFTP, SurfaceBoth, taskFTP, param("dest", ""), param("username", "anonymous"), param("password", ""), param("dir", "bu"))
	r.RegisterCommand(KindFTPList, SurfaceBoth, taskFTPList, param("filelist", ""), param("dest", ""), param("username", "anonymous"), param("password", ""), param("dir", "bu"))
	r.AddExample("ftplist", "todocopy ftplist filelist.txt 205.107.10.199", "FTP every file in the list")

	r.RegisterCommand(KindExec, SurfaceBoth, taskExec, param("executable", ""), param("value", ""))
	r.RegisterCommand(KindSVN, SurfaceBoth, taskSVN, param("action", ""), param("path", ""), param("name", ""), param("value", ""), param("src", ""), param("recurse", "0"), param("revstr", ""))
	r.RegisterCommand(KindSVNDir, SurfaceBoth, taskSVNDir, param("src", "."), param("recurse", "0"))
	r.RegisterCommand(KindCrontab, SurfaceBoth, taskCrontab, param("cmd", "/etc/myprog"), param("log", ""), param("month", "*"), param("day", "*"), param("hour", "*"), param("min", "*"), param("dayofweek", "*"))
	r.AddExample("crontab", "todocopy crontab /usr/local/bin/backup '' '*' '*' 2 30 sunday", "Print a crontab line for a weekly job")
	r.RegisterCommand(KindSCP, SurfaceBoth, taskSCP, param("src", ""), param("dest", ""), param("user", "root"), param("host", ""), param("port", "22"))

	r.RegisterCommand(KindJoomla, SurfaceBoth, taskJoomla, param("action", "getconfig"), param("src", ""))
	r.RegisterCommand(KindMySQL, SurfaceBoth, taskMySQL, param("action", ""), param("query", ""), param("msg", ""), param("tables", ""), param("path", ""), param("type", ""), param("output", ""), param("processfiles", "0"))
	r.RegisterCommand(KindDBSummary, SurfaceBoth, taskDBSummary, param("tablelist", ""), param("excludelist", ""), param("output", ""), param("checksum", "0"), param("onlymissing", "0"), param("pausebetween", "0"))
	r.AddExample("dbsummary", "todocopy dbsummary -o dbsumm.xml", "Generate database summary and output to .xml file")
	r.AddExample("dbsummary", "todocopy dbsummary tbvenue,tbtasktype -o db.xml", "Generate database summary of 2 tables")

	r.RegisterCommand(KindLog, SurfaceBoth, taskLog, param("msg", ""), param("output", ""), param("date", ""), param("tofile", ""), param("toscreen", ""))
	r.RegisterCommand(KindEmail, SurfaceBoth, taskEmail, param("to", ""), param("subject", "Todo Copy {DATE}"), param("body", ""), param("from", "todocopy@localhost"), param("method", "smtp"), param("attach", ""), param("host", "localhost:25"))

	r.RegisterCommand(KindMD5, SurfaceBoth, hashTask(KindMD5), param("source", ""))
	r.AddExample("md5", "todocopy md5 myplaintext", "Returns an MD5 value of the passed plaintext")
	r.RegisterCommand(KindSHA1, SurfaceBoth, hashTask(KindSHA1), param("source", ""))
	r.AddExample("sha1", "todocopy sha1 myplaintext", "Returns an SHA1 value of the passed plaintext")
	r.RegisterCommand(KindBLAKE3, SurfaceBoth, hashTask(KindBLAKE3), param("source", ""))

	r.RegisterCommand(KindPause, SurfaceScript, taskPause)
	r.RegisterCommand(KindInput, SurfaceScript, taskInput, param("msg", "Do you want to continue(y)?"))
	r.Register(Command{Kind: KindProperty, Task: TaskFunc(taskProperty), Params: ParameterSet{param("name", ""), param("value", "")}, Surface: SurfaceScript, Directive: true})
	r.Register(Command{Kind: KindTag, Task: TaskFunc(taskTag), Params: ParameterSet{param("name", ""), param("value", ""), param("type", "")}, Surface: SurfaceScript, Directive: true})
	r.RegisterCommand(KindDumpState, SurfaceBoth, taskDumpState, param("output", ""), param("format", "yaml"))
	r.RegisterCommand(KindExamples, SurfaceCommand, taskExamples, param("type", ""))
}

func taskExamples(_ context.Context, rc *RunContext, _ Attrs) error {
	if rc.registry == nil {
		return fmt.Errorf("no command registry")
	}
	rc.Println("\n--------- Todo Copy Command Line Examples --------- ")
	rc.Println()
	rc.Printf("%-15s%-55s%s\n", "CmdName", "Example", "Description")
	rc.Printf("%-15s%-55s%s\n", "-------", "-------", "-----------")
	for _, ex := range rc.registry.Examples() {
		rc.Printf("%-15s%-55s%s\n", ex.Name, ex.Usage, ex.Desc)
	}

	var names []string
	for _, kind := range rc.registry.Kinds() {
		if rc.registry.Has(kind, SurfaceCommand) {
			names = append(names, string(kind))
		}
	}
	rc.Println("\nCommands: " + strings.Join(names, ", "))
	return nil
}

// srcDest resolves a task's src and dest, inheriting the last-set
// srcPath/destPath when the task omits them.
func srcDest(rc *RunContext, attrs Attrs) (string, string) {
	src := firstNonEmpty(rc.Expand(attrs.Get("src")), rc.Props.Get("srcPath"))
	dest := firstNonEmpty(rc.Expand(attrs.Get("dest")), rc.Props.Get("destPath"))
	return strings.TrimSpace(src), strings.TrimSpace(dest)
}
