// Package engine talks to the external metadata engine (exiftool) that reads
// tags from RAW files and writes embedded previews out of them.
package engine

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when a command is issued on an ended worker.
var ErrClosed = errors.New("exiftool process already ended")

// Worker is one handle on the metadata engine. Implementations accept a single
// in-flight command at a time.
type Worker interface {
	// Read returns the tag map of path.
	Read(path string) (Tags, error)
	// ExtractPreview writes the binary value of tag in source to dest.
	ExtractPreview(tag, source, dest string) error
	// ExtractPreviewBuffer returns the binary value of tag in source.
	ExtractPreviewBuffer(tag, source string) ([]byte, error)
	// WriteTags assigns tags on path using the given extra engine flags.
	WriteTags(path string, tags map[string]string, flags ...string) error
	// End terminates the engine process.
	End() error
}

// Closer is implemented by workers that can tell when their process is gone.
type Closer interface {
	Closed() bool
}

// IsClosed reports whether w is known to accept no more commands.
func IsClosed(w Worker) bool {
	c, ok := w.(Closer)
	return ok && c.Closed()
}

// Factory starts a new Worker.
type Factory func() (Worker, error)

// CommandError is a failure reported by the engine for one command.
type CommandError struct {
	Op      string
	Path    string
	Message string
}

func (e *CommandError) Error() string {
	return e.Message
}

// PreviewTags lists the preview tags in order of preference.
var PreviewTags = []string{
	"JpgFromRaw",
	"PreviewImage",
}

// Orientation labels indexed by code-1, as understood by exiftool when writing.
var orientationLabels = []string{
	"Horizontal (normal)",
	"Mirror horizontal",
	"Rotate 180",
	"Mirror vertical",
	"Mirror horizontal and rotate 270 CW",
	"Rotate 90 CW",
	"Mirror horizontal and rotate 90 CW",
	"Rotate 270 CW",
}

// OrientationNormal is the code for an image that needs no rotation or mirroring.
const OrientationNormal = 1

// OrientationLabel maps a numeric EXIF orientation to its textual label.
func OrientationLabel(code int) (string, bool) {
	if code < 1 || code > len(orientationLabels) {
		return "", false
	}
	return orientationLabels[code-1], true
}

// Tags is the metadata record returned by Read.
type Tags map[string]interface{}

// PreviewTag returns the first preview tag, in PreviewTags order, matched by a
// key of the record. A key matches when the tag name contains it, so sized
// companions such as PreviewImageLength never select a preview.
func (t Tags) PreviewTag() (string, bool) {
	for _, preview := range PreviewTags {
		for key := range t {
			if key != "" && strings.Contains(preview, key) {
				return preview, true
			}
		}
	}
	return "", false
}

// Orientation returns the numeric orientation code. present is true when the
// tag exists at all; numeric is true only when it decodes to a number.
func (t Tags) Orientation() (code int, present, numeric bool) {
	v, ok := t["Orientation"]
	if !ok || v == nil {
		return 0, false, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true, true
	case int:
		return n, true, true
	case int64:
		return int(n), true, true
	}
	return 0, true, false
}

// Serialize wraps w so that at most one command runs on it at a time,
// whatever the implementation does internally.
func Serialize(w Worker) Worker {
	if _, ok := w.(*lockedWorker); ok {
		return w
	}
	return &lockedWorker{w: w}
}

type lockedWorker struct {
	mu sync.Mutex
	w  Worker
	// closed is set once a command came back with ErrClosed.
	closed atomic.Bool
}

func (l *lockedWorker) Read(path string) (Tags, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tags, err := l.w.Read(path)
	return tags, l.track(err)
}

func (l *lockedWorker) ExtractPreview(tag, source, dest string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.track(l.w.ExtractPreview(tag, source, dest))
}

func (l *lockedWorker) ExtractPreviewBuffer(tag, source string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	data, err := l.w.ExtractPreviewBuffer(tag, source)
	return data, l.track(err)
}

func (l *lockedWorker) WriteTags(path string, tags map[string]string, flags ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.track(l.w.WriteTags(path, tags, flags...))
}

// Closed does not wait for a running command.
func (l *lockedWorker) Closed() bool {
	return l.closed.Load() || IsClosed(l.w)
}

func (l *lockedWorker) track(err error) error {
	if errors.Is(err, ErrClosed) {
		l.closed.Store(true)
	}
	return err
}

func (l *lockedWorker) End() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.End()
}
