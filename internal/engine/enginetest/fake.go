// Package enginetest provides an in-memory engine.Worker for tests.
package enginetest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/przemyslawpluta/extractd/internal/engine"
)

// JPEG is a minimal payload starting with the JPEG SOI marker, so its base64
// form starts with "/9j/".
var JPEG = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xff, 0xd9}

// Worker answers engine commands from canned tag records.
type Worker struct {
	mu sync.Mutex

	// Records maps absolute source paths to their metadata.
	Records map[string]engine.Tags
	// ReadErrs maps source paths to read failures.
	ReadErrs map[string]error
	// Preview is the payload written or returned by extraction.
	Preview    []byte
	ExtractErr error
	WriteErr   error

	Calls  []string
	Ended  int
	active int
	// MaxActive is the highest number of commands seen running at once.
	MaxActive int
}

func NewWorker() *Worker {
	return &Worker{
		Records:  make(map[string]engine.Tags),
		ReadErrs: make(map[string]error),
		Preview:  JPEG,
	}
}

func (w *Worker) enter(call string) func() {
	w.mu.Lock()
	w.Calls = append(w.Calls, call)
	w.active++
	if w.active > w.MaxActive {
		w.MaxActive = w.active
	}
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		w.active--
		w.mu.Unlock()
	}
}

func (w *Worker) Read(path string) (engine.Tags, error) {
	defer w.enter("read " + path)()

	if w.ended() {
		return nil, engine.ErrClosed
	}
	if err, ok := w.ReadErrs[path]; ok {
		return nil, err
	}
	tags, ok := w.Records[path]
	if !ok {
		return nil, &engine.CommandError{Op: "read", Path: path, Message: "Unknown file type - " + path}
	}
	return tags, nil
}

func (w *Worker) ExtractPreview(tag, source, dest string) error {
	defer w.enter(fmt.Sprintf("extract %s %s %s", tag, source, dest))()

	if w.ended() {
		return engine.ErrClosed
	}
	if w.ExtractErr != nil {
		return w.ExtractErr
	}
	if _, err := os.Stat(filepath.Dir(dest)); err != nil {
		return &engine.CommandError{Op: "extract", Path: dest, Message: "Error creating " + dest}
	}
	return os.WriteFile(dest, w.Preview, 0644)
}

func (w *Worker) ExtractPreviewBuffer(tag, source string) ([]byte, error) {
	defer w.enter(fmt.Sprintf("buffer %s %s", tag, source))()

	if w.ended() {
		return nil, engine.ErrClosed
	}
	if w.ExtractErr != nil {
		return nil, w.ExtractErr
	}
	return append([]byte(nil), w.Preview...), nil
}

func (w *Worker) WriteTags(path string, tags map[string]string, flags ...string) error {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name+"="+tags[name])
	}
	sort.Strings(names)
	defer w.enter(fmt.Sprintf("write %s %s %s", path, strings.Join(names, ","), strings.Join(flags, " ")))()

	if w.ended() {
		return engine.ErrClosed
	}
	return w.WriteErr
}

func (w *Worker) End() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Ended++
	return nil
}

// Closed reports whether End was called.
func (w *Worker) Closed() bool {
	return w.ended()
}

func (w *Worker) ended() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Ended > 0
}

// CallsWithPrefix returns the recorded calls starting with prefix.
func (w *Worker) CallsWithPrefix(prefix string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []string
	for _, c := range w.Calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Starter is an engine.Factory recording every worker it starts.
type Starter struct {
	mu sync.Mutex
	// Template configures each new worker. Nil means NewWorker.
	Template func() *Worker
	Err      error
	Started  []*Worker
}

func (s *Starter) Start() (engine.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	w := NewWorker()
	if s.Template != nil {
		w = s.Template()
	}
	s.Started = append(s.Started, w)
	return w, nil
}

// Count returns how many workers were started.
func (s *Starter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Started)
}
