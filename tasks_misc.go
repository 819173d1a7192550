package main

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// taskLog appends msg to the log file and echoes it. toscreen is on
// unless "0"; tofile is on when set, or when an output file is known.
func taskLog(_ context.Context, rc *RunContext, attrs Attrs) error {
	if output := rc.Expand(attrs.Get("output")); output != "" {
		rc.Props.Set("logfile", output)
	}
	msg := rc.Expand(attrs.Get("msg"))
	if msg == "" {
		return nil
	}

	line := msg
	if attrs.Get("date") != "0" {
		line = rc.Now().Format("060102-15:04") + "\t" + msg
	}
	toScreen := attrs.Get("toscreen") != "0"
	toFile := isTruthy(attrs.Get("tofile"))
	if attrs.Get("tofile") == "" {
		_, toFile = rc.Props.Lookup("logfile")
	}

	if toScreen {
		rc.Println(line)
	}
	rc.Logger.Debug("log", "msg", msg)
	if !toFile {
		return nil
	}
	path := firstNonEmpty(rc.Props.Get("logfile"), "tc_log.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("can't write to %s: %w", path, err)
	}
	if _, err := fmt.Fprintln(f, line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

type emailMessage struct {
	From    string
	To      []string
	Subject string
	Body    string
	Attach  []string
	Date    string
}

// plain renders headers and body without attachments, for sendmail -t.
func (m emailMessage) plain() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "To: %s\r\nFrom: %s\r\nSubject: %s\r\n\r\n%s", strings.Join(m.To, ", "), m.From, m.Subject, m.Body)
	return b.Bytes()
}

// mime renders a multipart message with each attachment base64 encoded.
func (m emailMessage) mime() ([]byte, error) {
	var b bytes.Buffer
	mw := multipart.NewWriter(&b)
	fmt.Fprintf(&b, "From: %s\r\nTo: %s\r\nDate: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\n", m.From, strings.Join(m.To, ", "), m.Date, m.Subject)
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mw.Boundary())

	part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(m.Body)); err != nil {
		return nil, err
	}

	for _, path := range m.Attach {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"application/octet-stream"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", filepath.Base(path))},
		})
		if err != nil {
			return nil, err
		}
		enc := base64.NewEncoder(base64.StdEncoding, part)
		if _, err := enc.Write(data); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func taskEmail(ctx context.Context, rc *RunContext, attrs Attrs) error {
	rc.Println("Sending email.")
	msg := emailMessage{
		From:    rc.Expand(attrs.Value("from", "todocopy@localhost")),
		To:      splitList(rc.Expand(attrs.Get("to"))),
		Subject: rc.Expand(attrs.Get("subject")),
		Body:    rc.Expand(attrs.Get("body")),
		Attach:  splitList(rc.Expand(attrs.Get("attach"))),
		Date:    rc.Now().Format("Mon, 02 Jan 2006 15:04:05 -0700"),
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("email needs a recipient")
	}

	if attrs.Get("method") == "sendmail" {
		cmd := exec.CommandContext(ctx, "/usr/sbin/sendmail", "-t")
		cmd.Stdin = bytes.NewReader(msg.plain())
		output, err := cmd.CombinedOutput()
		rc.Printf("%s", output)
		if err != nil {
			return fmt.Errorf("sendmail: %w", err)
		}
		return nil
	}

	data, err := msg.mime()
	if err != nil {
		return err
	}
	host := rc.Expand(attrs.Value("host", "localhost:25"))
	if err := smtp.SendMail(host, nil, msg.From, msg.To, data); err != nil {
		return fmt.Errorf("smtp %s: %w", host, err)
	}
	return nil
}

// digest returns the hex digest of data for one of the hash task kinds.
func digest(kind TaskKind, data []byte) string {
	switch kind {
	case KindMD5:
		sum := md5.Sum(data)
		return hex.EncodeToString(sum[:])
	case KindSHA1:
		sum := sha1.Sum(data)
		return hex.EncodeToString(sum[:])
	default:
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
}

func hashTask(kind TaskKind) TaskFunc {
	return func(_ context.Context, rc *RunContext, attrs Attrs) error {
		source := rc.Expand(attrs.Get("source"))
		rc.Println(source + " = " + digest(kind, []byte(source)))
		return nil
	}
}

func taskPause(ctx context.Context, rc *RunContext, _ Attrs) error {
	_, err := rc.Prompt.Ask(ctx, "Press the ENTER key to continue...", "")
	return err
}

// taskInput aborts the remaining siblings unless the operator answers y.
func taskInput(ctx context.Context, rc *RunContext, attrs Attrs) error {
	msg := rc.Expand(attrs.Value("msg", "Do you want to continue(y)?"))
	ok, err := rc.Prompt.Confirm(ctx, msg)
	if err != nil {
		return err
	}
	if !ok {
		return raise(CodeAborted, msg)
	}
	return nil
}

func taskProperty(_ context.Context, rc *RunContext, attrs Attrs) error {
	name := attrs.Get("name")
	if name == "" {
		return nil
	}
	rc.Props.Set(name, rc.Expand(attrs.Get("value")))
	return nil
}

// taskTag sets a tag, asking the operator for its value when
// type="input". The declared value is the default.
func taskTag(ctx context.Context, rc *RunContext, attrs Attrs) error {
	name := attrs.Get("name")
	if name == "" {
		return nil
	}
	value := attrs.Get("value")
	if attrs.Get("type") == "input" {
		answer, err := rc.Prompt.Ask(ctx, fmt.Sprintf("Enter a value for the tag %s(default:%s):", name, value), value)
		if err != nil {
			return err
		}
		value = answer
	}
	value = rc.Expand(value)
	rc.Printf("  set tag '%s' to %s\n", name, value)
	rc.Tags.Set(name, value)
	return nil
}

// stateSnapshot is the dumpstate document. Passwords are masked.
type stateSnapshot struct {
	Tags       map[string]string `yaml:"tags" json:"tags" cbor:"tags"`
	Properties map[string]string `yaml:"properties" json:"properties" cbor:"properties"`

	tagNames []string
	propKeys []string
}

func snapshot(rc *RunContext) stateSnapshot {
	props := rc.Props.Snapshot()
	for key, value := range props {
		if strings.Contains(key, "password") && value != "" {
			props[key] = "****"
		}
	}
	return stateSnapshot{
		Tags:       rc.Tags.Snapshot(),
		Properties: props,
		tagNames:   rc.Tags.Names(),
		propKeys:   rc.Props.Keys(),
	}
}

// text renders one "kind name = value" line per entry, sorted by name.
func (s stateSnapshot) text() []byte {
	var b strings.Builder
	for _, name := range s.tagNames {
		fmt.Fprintf(&b, "tag %s = %s\n", name, s.Tags[name])
	}
	for _, key := range s.propKeys {
		fmt.Fprintf(&b, "property %s = %s\n", key, s.Properties[key])
	}
	return []byte(b.String())
}

func (s stateSnapshot) encode(format string) ([]byte, error) {
	switch format {
	case "", "yaml":
		return yaml.Marshal(s)
	case "json":
		out, err := json.MarshalIndent(s, "", "  ")
		return append(out, '\n'), err
	case "cbor":
		return cbor.Marshal(s)
	case "text":
		return s.text(), nil
	default:
		return nil, fmt.Errorf("unknown dumpstate format %q", format)
	}
}

func taskDumpState(_ context.Context, rc *RunContext, attrs Attrs) error {
	data, err := snapshot(rc).encode(attrs.Value("format", "yaml"))
	if err != nil {
		return err
	}
	return writeOutput(rc, rc.Expand(attrs.Get("output")), data)
}
