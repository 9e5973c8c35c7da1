package engine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ExifTool is a Worker backed by one `exiftool -stay_open True -@ -` process.
// Arguments are written one per line to stdin; each command ends with
// -execute<N> and its output is terminated by {ready<N>} on stdout and, via
// -echo4, on stderr.
type ExifTool struct {
	mu     sync.Mutex
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *bufio.Reader
	wait   func() error
	common []string
	seq    int
	closed bool
	// done is set by End and once the pipes fail, when the process is gone or
	// out of sync. It is read without waiting for a running command.
	done atomic.Bool
}

// Start launches exiftool found at binPath (a path or a command name looked up
// in PATH). commonArgs are prepended to every command.
func Start(binPath string, commonArgs ...string) (*ExifTool, error) {
	bin, err := exec.LookPath(binPath)
	if err != nil {
		return nil, fmt.Errorf("exiftool not found: %w", err)
	}

	cmd := exec.Command(bin, "-stay_open", "True", "-@", "-")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start exiftool: %w", err)
	}

	return newExifTool(stdin, stdout, stderr, cmd.Wait, commonArgs), nil
}

// NewFactory returns a Factory starting exiftool with the given arguments.
func NewFactory(binPath string, commonArgs ...string) Factory {
	return func() (Worker, error) {
		return Start(binPath, commonArgs...)
	}
}

func newExifTool(stdin io.WriteCloser, stdout, stderr io.Reader, wait func() error, common []string) *ExifTool {
	return &ExifTool{
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		stderr: bufio.NewReader(stderr),
		wait:   wait,
		common: common,
	}
}

func (e *ExifTool) Read(path string) (Tags, error) {
	out, stderr, err := e.execute("-json", "-n", path)
	if err != nil {
		return nil, err
	}

	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		msg := errorText(stderr)
		if msg == "" {
			msg = "No metadata returned for " + path
		}
		return nil, &CommandError{Op: "read", Path: path, Message: msg}
	}

	var records []Tags
	if err := json.Unmarshal(out, &records); err != nil {
		return nil, &CommandError{Op: "read", Path: path, Message: "Invalid metadata output: " + err.Error()}
	}
	if len(records) == 0 {
		return nil, &CommandError{Op: "read", Path: path, Message: "No metadata returned for " + path}
	}

	tags := records[0]
	if msg, ok := tags["Error"].(string); ok && msg != "" {
		return nil, &CommandError{Op: "read", Path: path, Message: msg}
	}
	return tags, nil
}

func (e *ExifTool) ExtractPreview(tag, source, dest string) error {
	// %0f expands to nothing, which makes -w take dest as a literal file name.
	_, stderr, err := e.execute("-b", "-"+tag, "-w", "%0f"+dest, source)
	if err != nil {
		return err
	}
	if msg := errorText(stderr); msg != "" {
		return &CommandError{Op: "extract", Path: dest, Message: msg}
	}
	return nil
}

func (e *ExifTool) ExtractPreviewBuffer(tag, source string) ([]byte, error) {
	out, stderr, err := e.execute("-b", "-"+tag, source)
	if err != nil {
		return nil, err
	}
	if msg := errorText(stderr); msg != "" {
		return nil, &CommandError{Op: "extract", Path: source, Message: msg}
	}
	if len(out) == 0 {
		return nil, &CommandError{Op: "extract", Path: source, Message: "No " + tag + " data in " + source}
	}
	return out, nil
}

func (e *ExifTool) WriteTags(path string, tags map[string]string, flags ...string) error {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	args := append([]string{}, flags...)
	for _, name := range names {
		args = append(args, "-"+name+"="+tags[name])
	}
	args = append(args, path)

	_, stderr, err := e.execute(args...)
	if err != nil {
		return err
	}
	if msg := errorText(stderr); msg != "" {
		return &CommandError{Op: "write", Path: path, Message: msg}
	}
	return nil
}

// Closed reports whether the handle accepts no more commands, either because
// End was called or because the process stopped answering.
func (e *ExifTool) Closed() bool {
	return e.done.Load()
}

// End asks exiftool to leave stay_open mode and waits for it to exit. A dead
// handle is still reaped. Calling End more than once is a no-op.
func (e *ExifTool) End() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.done.Store(true)

	_, werr := io.WriteString(e.stdin, "-stay_open\nFalse\n")
	cerr := e.stdin.Close()
	if e.wait != nil {
		if err := e.wait(); err != nil {
			return err
		}
	}
	if werr != nil {
		return werr
	}
	return cerr
}

func (e *ExifTool) execute(args ...string) ([]byte, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.done.Load() {
		return nil, "", ErrClosed
	}

	e.seq++
	marker := fmt.Sprintf("{ready%d}", e.seq)

	var cmd strings.Builder
	for _, arg := range append(append([]string{}, e.common...), args...) {
		if strings.ContainsAny(arg, "\r\n") {
			return nil, "", fmt.Errorf("argument contains a line break: %q", arg)
		}
		cmd.WriteString(arg)
		cmd.WriteByte('\n')
	}
	fmt.Fprintf(&cmd, "-echo4\n%s\n-execute%d\n", marker, e.seq)

	if _, err := io.WriteString(e.stdin, cmd.String()); err != nil {
		e.done.Store(true)
		return nil, "", fmt.Errorf("failed to send command to exiftool: %w", err)
	}

	out, err := readUntil(e.stdout, marker)
	if err != nil {
		e.done.Store(true)
		return nil, "", fmt.Errorf("failed to read exiftool output: %w", err)
	}
	errOut, err := readUntil(e.stderr, marker)
	if err != nil {
		e.done.Store(true)
		return nil, "", fmt.Errorf("failed to read exiftool errors: %w", err)
	}

	return out, string(errOut), nil
}

// readUntil reads r up to and including the marker line and returns what came
// before it. Binary payloads may contain newlines and are not terminated by
// one, so the check is done on the accumulated bytes.
func readUntil(r *bufio.Reader, marker string) ([]byte, error) {
	var buf bytes.Buffer
	lf := []byte(marker + "\n")
	crlf := []byte(marker + "\r\n")

	for {
		chunk, err := r.ReadBytes('\n')
		buf.Write(chunk)

		data := buf.Bytes()
		switch {
		case bytes.HasSuffix(data, crlf):
			return data[:len(data)-len(crlf)], nil
		case bytes.HasSuffix(data, lf):
			return data[:len(data)-len(lf)], nil
		}

		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

// errorText collects the error lines exiftool printed on stderr. Warnings
// are ignored.
func errorText(stderr string) string {
	var lines []string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Error") {
			continue
		}
		lines = append(lines, strings.TrimPrefix(line, "Error: "))
	}
	return strings.Join(lines, "\n")
}
