// Package artifact locates and loads persisted model artifacts.
//
// A Resolver maps a logical name such as "model" to a file named
// "<name><ext>" under one of several candidate roots, returning the decoded
// contents of the first candidate that exists. When no roots are configured
// the search falls back to a ranked list that tolerates the process being
// started from an unexpected working directory.
package artifact

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/banshee-data/score.report/internal/failure"
	"github.com/banshee-data/score.report/internal/fsutil"
	"github.com/banshee-data/score.report/internal/security"
)

const (
	// DefaultDir is the conventional artifacts directory name.
	DefaultDir = "artifacts"
	// DefaultExt is appended to logical names.
	DefaultExt = ".cbor"
)

// Options configures a Resolver.
type Options struct {
	// Roots are searched in order. When empty, DefaultRoots is used.
	Roots []string

	// Ext is the filename extension; DefaultExt when empty.
	Ext string

	// FS defaults to fsutil.OSFileSystem.
	FS fsutil.FileSystem

	// Getwd defaults to os.Getwd. It is consulted on every lookup.
	Getwd func() (string, error)

	// Executable defaults to os.Executable.
	Executable func() (string, error)

	// Codecs decodes artifact payloads. Required.
	Codecs *Codecs

	// Cache keeps decoded artifacts for the life of the Resolver.
	Cache bool
}

// Candidate is one searched location.
type Candidate struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Size   int64  `json:"size"`
	Err    string `json:"error,omitempty"`
}

// Resolver loads artifacts by logical name. Safe for concurrent use.
type Resolver struct {
	roots      []string
	ext        string
	fs         fsutil.FileSystem
	getwd      func() (string, error)
	executable func() (string, error)
	codecs     *Codecs
	useCache   bool
	cache      sync.Map
}

// NewResolver applies defaults to opts and returns a Resolver.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		roots:      append([]string(nil), opts.Roots...),
		ext:        opts.Ext,
		fs:         opts.FS,
		getwd:      opts.Getwd,
		executable: opts.Executable,
		codecs:     opts.Codecs,
		useCache:   opts.Cache,
	}
	if r.ext == "" {
		r.ext = DefaultExt
	}
	if r.fs == nil {
		r.fs = fsutil.OSFileSystem{}
	}
	if r.getwd == nil {
		r.getwd = os.Getwd
	}
	if r.executable == nil {
		r.executable = os.Executable
	}
	if r.codecs == nil {
		r.codecs = NewCodecs()
	}
	return r
}

// FileName returns the on-disk file name for a logical artifact name.
func (r *Resolver) FileName(name string) string {
	return name + r.ext
}

// Roots returns the roots searched right now, in order.
func (r *Resolver) Roots() []string {
	if len(r.roots) > 0 {
		return append([]string(nil), r.roots...)
	}
	return DefaultRoots(r.getwd, r.executable)
}

// DefaultRoots is the fallback search order: the relative artifacts
// directory, the same directory under the working directory, the directory
// two levels above this package's source, and the directory beside the
// running executable. Entries that cannot be computed are skipped.
func DefaultRoots(getwd, executable func() (string, error)) []string {
	roots := []string{DefaultDir}
	if getwd != nil {
		if wd, err := getwd(); err == nil {
			roots = append(roots, filepath.Join(wd, DefaultDir))
		}
	}
	if anchor := sourceAnchor(); anchor != "" {
		roots = append(roots, filepath.Join(anchor, DefaultDir))
	}
	if executable != nil {
		if exe, err := executable(); err == nil {
			roots = append(roots, filepath.Join(filepath.Dir(exe), DefaultDir))
		}
	}
	return dedupe(roots)
}

// sourceAnchor is two directories above the directory holding this file,
// i.e. the module root when running from a checkout.
func sourceAnchor() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok || file == "" {
		return ""
	}
	return filepath.Dir(filepath.Dir(filepath.Dir(file)))
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Candidates lists the full paths searched for name, in order.
func (r *Resolver) Candidates(name string) []string {
	file := r.FileName(name)
	roots := r.Roots()
	out := make([]string, len(roots))
	for i, root := range roots {
		out[i] = filepath.Join(root, file)
	}
	return out
}

// Probe stats every candidate for name without reading any of them.
func (r *Resolver) Probe(name string) []Candidate {
	paths := r.Candidates(name)
	out := make([]Candidate, len(paths))
	for i, p := range paths {
		c := Candidate{Path: p}
		info, err := r.fs.Stat(p)
		switch {
		case err == nil && !info.IsDir():
			c.Exists = true
			c.Size = info.Size()
		case err == nil:
			c.Err = "is a directory"
		case !errors.Is(err, fs.ErrNotExist):
			c.Err = err.Error()
		}
		out[i] = c
	}
	return out
}

// Locate returns the first existing candidate for name.
func (r *Resolver) Locate(name string) (Candidate, error) {
	if err := validName(name); err != nil {
		return Candidate{}, err
	}
	probed := r.Probe(name)
	tried := make([]string, len(probed))
	for i, c := range probed {
		if c.Exists {
			return c, nil
		}
		tried[i] = c.Path
	}
	return Candidate{}, failure.NotFound(name, tried)
}

// Resolve locates, reads and decodes the named artifact. It never returns a
// default object: a missing, empty or undecodable file is an error.
func (r *Resolver) Resolve(name string) (any, error) {
	if r.useCache {
		if obj, ok := r.cache.Load(name); ok {
			return obj, nil
		}
	}

	c, err := r.Locate(name)
	if err != nil {
		return nil, err
	}
	if c.Size == 0 {
		return nil, failure.Empty(name, c.Path)
	}

	data, err := r.fs.ReadFile(c.Path)
	if err != nil {
		return nil, failure.Corrupt(name, c.Path, err)
	}
	if len(data) == 0 {
		return nil, failure.Empty(name, c.Path)
	}

	obj, err := r.codecs.Decode(data)
	if err != nil {
		return nil, failure.Corrupt(name, c.Path, err)
	}

	if r.useCache {
		// Concurrent first loads decode the same immutable file; whichever
		// stores first wins and the others adopt it.
		actual, _ := r.cache.LoadOrStore(name, obj)
		return actual, nil
	}
	return obj, nil
}

// Inspect locates the artifact and parses its envelope without decoding the
// payload.
func (r *Resolver) Inspect(name string) (Candidate, Envelope, error) {
	c, err := r.Locate(name)
	if err != nil {
		return Candidate{}, Envelope{}, err
	}
	if c.Size == 0 {
		return c, Envelope{}, failure.Empty(name, c.Path)
	}
	data, err := r.fs.ReadFile(c.Path)
	if err != nil {
		return c, Envelope{}, failure.Corrupt(name, c.Path, err)
	}
	env, err := DecodeEnvelope(data)
	if err != nil {
		return c, Envelope{}, failure.Corrupt(name, c.Path, err)
	}
	return c, env, nil
}

// Save encodes v as an artifact of the given kind and writes it to
// dir/<name><ext>, creating dir if needed.
func (r *Resolver) Save(dir, name, kind string, v any) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	data, err := Encode(kind, v)
	if err != nil {
		return "", err
	}
	if err := r.fs.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, r.FileName(name))
	if err := r.fs.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func validName(name string) error {
	if err := security.ValidateArtifactName(name); err != nil {
		return &failure.Error{Kind: failure.ArtifactNotFound, Name: name, Cause: err}
	}
	return nil
}

// FirstRoot returns the first root that exists as a directory, with its
// entries. ok is false when no root exists.
func (r *Resolver) FirstRoot() (dir string, entries []string, ok bool) {
	for _, root := range r.Roots() {
		info, err := r.fs.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		entries, err := r.fs.ReadDir(root)
		if err != nil {
			return root, nil, true
		}
		return root, entries, true
	}
	return "", nil, false
}
