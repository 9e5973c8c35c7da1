package scanner

import (
	"os"
	"path/filepath"
	"strings"
)

type Scanner struct {
	includeExt map[string]bool
}

func New(extensions []string) *Scanner {
	extMap := make(map[string]bool)
	for _, ext := range extensions {
		extMap[strings.TrimPrefix(strings.ToLower(ext), ".")] = true
	}
	return &Scanner{includeExt: extMap}
}

// Expand replaces every directory in paths with the RAW files below it, in
// lexical order. Anything else, including paths that do not exist, is kept
// as given so that it still yields a result.
func (s *Scanner) Expand(paths []string) ([]string, error) {
	var sources []string

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			sources = append(sources, p)
			continue
		}

		found, err := s.Scan(p)
		if err != nil {
			return nil, err
		}
		sources = append(sources, found...)
	}

	return sources, nil
}

// Scan walks root and returns the files with an included extension.
func (s *Scanner) Scan(root string) ([]string, error) {
	var entries []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if !s.includeExt[ext] {
			return nil
		}

		entries = append(entries, path)
		return nil
	})

	return entries, err
}
