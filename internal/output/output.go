// Package output renders an extracted preview as a path, base64 text, a
// data-URI or a stream, and removes temporary preview files exactly once.
package output

import (
	"encoding/base64"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/przemyslawpluta/extractd/pkg/types"
)

// Artifact is what extraction produced: a file on disk or an in-memory buffer.
type Artifact struct {
	Path string
	Data []byte
}

// CleanupFunc is told about temp files that could not be removed.
type CleanupFunc func(path string, err error)

type Materializer struct {
	onCleanupError CleanupFunc
}

func New(onCleanupError CleanupFunc) *Materializer {
	if onCleanupError == nil {
		onCleanupError = func(string, error) {}
	}
	return &Materializer{onCleanupError: onCleanupError}
}

// Materialize turns the artifact into the representation asked for by opts.
// Files consumed by base64 encoding are removed before returning; stream
// backing files are removed when the stream is drained or closed.
func (m *Materializer) Materialize(a Artifact, opts types.Options) (*types.Preview, error) {
	if a.Data != nil {
		return m.fromBuffer(a.Data, opts), nil
	}

	switch {
	case opts.Base64:
		data, err := os.ReadFile(a.Path)
		m.remove(a.Path)
		if err != nil {
			return nil, err
		}
		return m.fromBuffer(data, opts), nil

	case opts.Stream:
		s, err := m.openStream(a.Path)
		if err != nil {
			m.remove(a.Path)
			return nil, err
		}
		return &types.Preview{Path: a.Path, Stream: s}, nil

	default:
		return &types.Preview{Path: a.Path}, nil
	}
}

// Discard removes a preview file that will not be delivered.
func (m *Materializer) Discard(path string) {
	m.remove(path)
}

func (m *Materializer) fromBuffer(data []byte, opts types.Options) *types.Preview {
	encoded := Encode(data, opts.WantsDataURI())
	if opts.Stream {
		return &types.Preview{Stream: io.NopCloser(strings.NewReader(encoded))}
	}
	return &types.Preview{Data: encoded}
}

func (m *Materializer) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.onCleanupError(path, err)
	}
}

// Encode returns data as standard base64, with the JPEG data-URI prefix when
// dataURI is set.
func Encode(data []byte, dataURI bool) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	if dataURI {
		return types.DataURIPrefix + encoded
	}
	return encoded
}

// Stream reads a preview file and removes it once fully read or closed.
type Stream struct {
	// Path is the backing file, kept for introspection.
	Path string

	file     *os.File
	once     sync.Once
	done     bool
	closeErr error
	remove   func(string)
}

func (m *Materializer) openStream(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Stream{Path: path, file: f, remove: m.remove}, nil
}

func (s *Stream) Read(p []byte) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	n, err := s.file.Read(p)
	if err == io.EOF {
		s.finish()
	}
	return n, err
}

// Close releases the stream early. The backing file is removed as well.
func (s *Stream) Close() error {
	s.finish()
	return s.closeErr
}

func (s *Stream) finish() {
	s.once.Do(func() {
		s.done = true
		s.closeErr = s.file.Close()
		s.remove(s.Path)
	})
}
