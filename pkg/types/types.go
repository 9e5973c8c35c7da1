// Package types defines core data structures used across extractd modules.
package types

import (
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"time"
)

// ErrNoSources is returned when a batch is started without any source path.
var ErrNoSources = errors.New("no source files given")

// DataURIPrefix is prepended to base64 previews when a data-URI is requested.
const DataURIPrefix = "data:image/jpeg;base64,"

// Options controls a single extraction call.
type Options struct {
	// Destination is the directory previews are written to. Empty means the OS temp dir.
	Destination string `yaml:"destination" json:"destination,omitempty"`
	// Persist keeps the engine process alive after the call returns.
	Persist bool `yaml:"persist" json:"persist"`
	// Compact drops failed items and reduces successful ones to their preview.
	Compact bool `yaml:"compact" json:"compact"`
	// Stream delivers the preview as a consumable stream.
	Stream bool `yaml:"stream" json:"stream"`
	// Base64 delivers the preview as base64 text.
	Base64 bool `yaml:"base64" json:"base64"`
	// DataURI prefixes base64 output with DataURIPrefix. Ignored without Base64.
	DataURI bool `yaml:"datauri" json:"datauri"`
}

// WantsDataURI reports whether the data-URI prefix applies.
func (o Options) WantsDataURI() bool {
	return o.Base64 && o.DataURI
}

// Normalize fills the destination default and cleans the path.
func (o Options) Normalize(tempDir string) Options {
	if o.Destination == "" {
		o.Destination = tempDir
	}
	o.Destination = filepath.Clean(o.Destination)
	return o
}

// SourceDescriptor is the resolved location of one input file.
type SourceDescriptor struct {
	// Dir is the absolute directory of the source.
	Dir string
	// Name is the base name without extension.
	Name string
	// Ext is the extension including the dot (e.g., ".nef").
	Ext string
}

// Path joins the descriptor back into an absolute path.
func (d SourceDescriptor) Path() string {
	return filepath.Join(d.Dir, d.Name+d.Ext)
}

// ExtractTask represents the planned work for one source.
type ExtractTask struct {
	Source SourceDescriptor
	// DestPath is the preview file location after collision avoidance.
	DestPath string
	// Renamed is set when DestPath carries a random suffix.
	Renamed bool
	// Tag is the preview tag selected from the metadata.
	Tag string
	// Orientation is the numeric orientation code, 0 when absent.
	Orientation int
}

// ErrorKind classifies a failed item.
type ErrorKind string

const (
	ErrorKindNotFound  ErrorKind = "not_found"
	ErrorKindNoPreview ErrorKind = "no_preview"
	ErrorKindRead      ErrorKind = "read_failure"
	ErrorKindExtract   ErrorKind = "extract_failure"
	ErrorKindWrite     ErrorKind = "write_failure"
)

// Preview is the delivered representation of an extracted image.
// Exactly one of Path (plain file), Data (base64 text) or Stream is the payload;
// Path is also kept alongside Stream for introspection.
type Preview struct {
	Path   string
	Data   string
	Stream io.ReadCloser
}

// String returns the text form: the encoded data if present, else the path.
func (p *Preview) String() string {
	if p.Data != "" {
		return p.Data
	}
	return p.Path
}

// MarshalJSON encodes the preview as a plain string.
func (p *Preview) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Result is the outcome for one source. Exactly one of Preview and Error is set.
type Result struct {
	Preview *Preview  `json:"preview,omitempty"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"-"`
	Source  string    `json:"source,omitempty"`
}

// OK reports whether the item produced a preview.
func (r Result) OK() bool {
	return r.Preview != nil
}

// Shape tells whether an Output is a single item or an ordered list.
type Shape string

const (
	ShapeSingle Shape = "single"
	ShapeList   Shape = "list"
)

// Output is the shaped result of a batch call.
type Output struct {
	Shape   Shape
	Compact bool
	// Results holds the items in input order. In compact mode only successful
	// items remain and their Source is cleared.
	Results []Result
}

// NewOutput applies compaction and the singleton rule to the ordered results.
func NewOutput(results []Result, compact bool) *Output {
	items := results
	if compact {
		items = make([]Result, 0, len(results))
		for _, r := range results {
			if r.OK() {
				items = append(items, Result{Preview: r.Preview})
			}
		}
	}

	shape := ShapeList
	if len(items) == 1 {
		shape = ShapeSingle
	}

	return &Output{Shape: shape, Compact: compact, Results: items}
}

// Single returns the only item when the output is unwrapped.
func (o *Output) Single() (Result, bool) {
	if o.Shape != ShapeSingle {
		return Result{}, false
	}
	return o.Results[0], true
}

// Previews returns the previews of all successful items in order.
func (o *Output) Previews() []*Preview {
	previews := make([]*Preview, 0, len(o.Results))
	for _, r := range o.Results {
		if r.Preview != nil {
			previews = append(previews, r.Preview)
		}
	}
	return previews
}

// MarshalJSON renders a single item unwrapped and compact items as bare previews.
func (o *Output) MarshalJSON() ([]byte, error) {
	if o.Compact {
		previews := o.Previews()
		if o.Shape == ShapeSingle {
			return json.Marshal(previews[0])
		}
		return json.Marshal(previews)
	}
	if o.Shape == ShapeSingle {
		return json.Marshal(o.Results[0])
	}
	return json.Marshal(o.Results)
}

// Status reports the session state.
type Status struct {
	Persistent bool `json:"persistent"`
}

// BatchSummary contains statistics for a completed batch.
type BatchSummary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}
