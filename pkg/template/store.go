// Package template loads form, screen and mail templates by reference.
//
// A reference is one of:
//
//	@FILE:path   a file relative to one of the base directories
//	123          a numeric resource id
//	name         a named chunk
package template

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNotExist indicates the referenced template could not be found.
var ErrNotExist = errors.New("tpl read error")

// FilePrefix marks a reference to a file below a base directory.
const FilePrefix = "@FILE:"

var resourceID = regexp.MustCompile(`^[1-9][0-9]*$`)

// Store loads templates.
type Store interface {
	Load(ref string) (string, error)
}

// NotFound wraps ErrNotExist with the reference that failed.
func NotFound(ref string) error {
	if ref == "" {
		return ErrNotExist
	}
	return fmt.Errorf("%w (%s)", ErrNotExist, ref)
}

// Kind classifies a trimmed reference.
type Kind int

// Reference kinds.
const (
	KindChunk Kind = iota
	KindResource
	KindFile
)

// Classify splits a reference into its kind and the name to look up.
func Classify(ref string) (Kind, string) {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(ref, FilePrefix) && len(ref) > len(FilePrefix):
		return KindFile, strings.TrimSpace(ref[len(FilePrefix):])
	case resourceID.MatchString(ref):
		return KindResource, ref
	}
	return KindChunk, ref
}

// FileStore loads templates from directories on disk. Loaded templates are cached when Cache is
// set.
type FileStore struct {
	ChunkDir    string
	ResourceDir string
	BaseDirs    []string
	Cache       bool

	mu     sync.Mutex
	cached map[string]string
}

// Load implements Store.
func (fs *FileStore) Load(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", NotFound(ref)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if text, ok := fs.cached[ref]; ok {
		return text, nil
	}

	kind, name := Classify(ref)
	var candidates []string
	switch kind {
	case KindFile:
		for _, dir := range fs.BaseDirs {
			candidates = append(candidates, within(dir, name))
		}
	case KindResource:
		candidates = []string{within(fs.ResourceDir, name+".html")}
	default:
		for _, ext := range []string{"", ".html", ".txt", ".yml", ".yaml"} {
			candidates = append(candidates, within(fs.ChunkDir, name+ext))
		}
	}
	for _, path := range candidates {
		if path == "" {
			continue
		}
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		text := string(b)
		log.Debug().Str("module", "template").Str("ref", ref).Str("path", path).Msg("Loaded template")
		if fs.Cache {
			if fs.cached == nil {
				fs.cached = make(map[string]string)
			}
			fs.cached[ref] = text
		}
		return text, nil
	}
	return "", NotFound(ref)
}

// within joins name below dir, returning "" if the result escapes dir.
func within(dir, name string) string {
	if dir == "" {
		return ""
	}
	path := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return path
}

// MemStore holds templates in memory, keyed by reference.
type MemStore struct {
	mu        sync.RWMutex
	templates map[string]string
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{templates: make(map[string]string)}
}

// Add stores text under ref.
func (ms *MemStore) Add(ref, text string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.templates[strings.TrimSpace(ref)] = text
}

// Load implements Store.
func (ms *MemStore) Load(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if text, ok := ms.templates[ref]; ok {
		return text, nil
	}
	return "", NotFound(ref)
}
