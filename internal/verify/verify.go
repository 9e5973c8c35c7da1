package verify

import (
	"fmt"
	"os"

	"github.com/rwcarlsen/goexif/exif"
)

// Verifier checks a written preview. With orientation checks enabled it also
// reads the EXIF Orientation back from the file.
type Verifier struct {
	orientation bool
}

func New(orientation bool) *Verifier {
	return &Verifier{orientation: orientation}
}

// Verify fails when destPath is missing or empty, or, if enabled, when its
// EXIF orientation differs from expected.
func (v *Verifier) Verify(destPath string, expected int) error {
	info, err := os.Stat(destPath)
	if err != nil {
		return fmt.Errorf("preview file not found: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("preview file is empty: %s", destPath)
	}

	if !v.orientation || expected == 0 {
		return nil
	}

	got, err := readOrientation(destPath)
	if err != nil {
		return err
	}
	if got != expected {
		return fmt.Errorf("orientation mismatch: expected %d, got %d", expected, got)
	}
	return nil
}

func readOrientation(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return 0, fmt.Errorf("no EXIF data: %w", err)
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0, fmt.Errorf("no orientation tag: %w", err)
	}
	return tag.Int(0)
}
