package policy

import (
	"crypto/rand"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SuffixAlphabet is the set of characters random suffixes are drawn from.
const SuffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_@"

// SuffixLength is the length of a generated suffix.
const SuffixLength = 9

const maxAttempts = 100

// SuffixFunc generates a short unique string.
type SuffixFunc func() string

// CollisionResolver keeps a preview from landing on an existing file, on its
// own source or on a path another item is about to write.
type CollisionResolver struct {
	suffix SuffixFunc

	mu       sync.Mutex
	reserved map[string]bool
}

// NewCollisionResolver returns a resolver using suffix for new names. Nil
// means RandomSuffix.
func NewCollisionResolver(suffix SuffixFunc) *CollisionResolver {
	if suffix == nil {
		suffix = RandomSuffix
	}
	return &CollisionResolver{suffix: suffix, reserved: make(map[string]bool)}
}

type Resolution struct {
	DestPath string
	Renamed  bool
}

// Resolve returns dest unchanged when it is free, otherwise <name>-<suffix>.jpg
// in the same directory. The returned path stays reserved until Release.
func (c *CollisionResolver) Resolve(source, dest string) Resolution {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := Resolution{DestPath: dest}
	if c.collides(source, dest) {
		dir := filepath.Dir(dest)
		ext := filepath.Ext(dest)
		base := strings.TrimSuffix(filepath.Base(dest), ext)

		for i := 0; i < maxAttempts; i++ {
			res.DestPath = filepath.Join(dir, base+"-"+c.suffix()+ext)
			if !c.collides(source, res.DestPath) {
				break
			}
		}
		res.Renamed = true
	}

	c.reserved[filepath.Clean(res.DestPath)] = true
	return res
}

// Release frees a path handed out by Resolve. Once the preview is written the
// file itself keeps the name taken.
func (c *CollisionResolver) Release(dest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.reserved, filepath.Clean(dest))
}

func (c *CollisionResolver) collides(source, dest string) bool {
	if filepath.Clean(source) == filepath.Clean(dest) {
		return true
	}
	if c.reserved[filepath.Clean(dest)] {
		return true
	}
	_, err := os.Lstat(dest)
	return err == nil
}

// RandomSuffix returns SuffixLength characters from SuffixAlphabet.
func RandomSuffix() string {
	var sb strings.Builder
	max := big.NewInt(int64(len(SuffixAlphabet)))
	for i := 0; i < SuffixLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		sb.WriteByte(SuffixAlphabet[n.Int64()])
	}
	return sb.String()
}
