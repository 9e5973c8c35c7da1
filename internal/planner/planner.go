package planner

import (
	"path/filepath"
	"strings"

	"github.com/przemyslawpluta/extractd/pkg/types"
)

// PreviewExt is the extension of every written preview.
const PreviewExt = ".jpg"

type Planner struct {
	destRoot string
}

// New returns a planner writing previews into destRoot.
func New(destRoot string) *Planner {
	return &Planner{destRoot: filepath.Clean(destRoot)}
}

// Describe resolves source into an absolute directory, base name and extension.
func Describe(source string) (types.SourceDescriptor, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return types.SourceDescriptor{}, err
	}

	ext := filepath.Ext(abs)
	return types.SourceDescriptor{
		Dir:  filepath.Dir(abs),
		Name: strings.TrimSuffix(filepath.Base(abs), ext),
		Ext:  ext,
	}, nil
}

// Plan builds the task for one source: destination is destRoot/<name>.jpg.
func (p *Planner) Plan(source string) (types.ExtractTask, error) {
	desc, err := Describe(source)
	if err != nil {
		return types.ExtractTask{}, err
	}

	return types.ExtractTask{
		Source:   desc,
		DestPath: filepath.Join(p.destRoot, desc.Name+PreviewExt),
	}, nil
}
