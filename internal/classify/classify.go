// Package classify turns raw engine and filesystem failures into the short,
// single-line messages reported per item.
package classify

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/przemyslawpluta/extractd/pkg/types"
)

const (
	MsgNotFound  = "File not found"
	MsgNoPreview = "No preview detected"

	creatingPrefix = "Error creating"
	detailSep      = " - "
)

// Failure is a classified item error.
type Failure struct {
	Kind    types.ErrorKind
	Message string
}

func (f Failure) Error() string {
	return f.Message
}

// Result pairs the failure with the source it belongs to.
func (f Failure) Result(source string) types.Result {
	return types.Result{Error: f.Message, Kind: f.Kind, Source: source}
}

// Probe classifies the error of the existence check on a source. ok is false
// when the error is not a "not found" condition and processing should go on.
func Probe(err error) (Failure, bool) {
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return NotFound(), true
	}
	return Failure{}, false
}

func NotFound() Failure {
	return Failure{Kind: types.ErrorKindNotFound, Message: MsgNotFound}
}

func NoPreview() Failure {
	return Failure{Kind: types.ErrorKindNoPreview, Message: MsgNoPreview}
}

// Read classifies a failure of the metadata read.
func Read(err error) Failure {
	return Failure{Kind: types.ErrorKindRead, Message: Message(err)}
}

// Extract classifies a failure while extracting to dest. Directory creation
// problems are reported against the destination path.
func Extract(err error, dest string) Failure {
	msg := Message(err)
	var pathErr *fs.PathError
	if strings.HasPrefix(msg, creatingPrefix) || (errors.As(err, &pathErr) && pathErr.Op == "mkdir") {
		return Creating(dest)
	}
	return Failure{Kind: types.ErrorKindExtract, Message: msg}
}

// Creating reports that dest could not be created.
func Creating(dest string) Failure {
	return Failure{Kind: types.ErrorKindExtract, Message: creatingPrefix + " " + dest}
}

// Write classifies an orientation rewrite failure. It is only logged.
func Write(err error) Failure {
	return Failure{Kind: types.ErrorKindWrite, Message: Message(err)}
}

// Message reduces an error to one line: the text after the last newline,
// then the text before the first " - " separator.
func Message(err error) string {
	if err == nil {
		return ""
	}

	msg := strings.TrimSpace(err.Error())
	if i := strings.LastIndex(msg, "\n"); i >= 0 {
		msg = strings.TrimSpace(msg[i+1:])
	}
	if i := strings.Index(msg, detailSep); i >= 0 {
		msg = msg[:i]
	}
	return msg
}
