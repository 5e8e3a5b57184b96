// Package archive accumulates named entries in memory and finalizes them into
// a single archive file.
//
// Entries are written in insertion order. Adding an entry under a name that
// already exists replaces its content in place: last write wins and the entry
// keeps the position of its first insertion. Callers that need unique names
// must ensure it themselves. That includes file names that are also used as
// folders: with CreateFolders, entries "a" and "a/b" produce both a file "a"
// and a folder "a/", which most extractors cannot materialize together.
package archive

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// ErrFinalized is returned when Finalize is called more than once.
var ErrFinalized = errors.New("archive already finalized")

// EntryOptions controls how an entry is added.
type EntryOptions struct {
	// CreateFolders materializes every parent folder of a slash-separated
	// name as its own folder entry.
	CreateFolders bool
}

type entry struct {
	name   string
	data   []byte
	folder bool
}

// Builder accumulates archive entries. It is not safe for concurrent use;
// all additions are expected to come from one goroutine.
type Builder struct {
	format    Format
	tempDir   string
	modTime   time.Time
	level     int
	entries   []entry
	index     map[string]int
	finalized bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithTempDir sets the directory Finalize writes into. Defaults to os.TempDir.
func WithTempDir(dir string) Option {
	return func(b *Builder) { b.tempDir = dir }
}

// WithModTime sets the modification time stamped on every entry.
func WithModTime(t time.Time) Option {
	return func(b *Builder) { b.modTime = t }
}

// WithCompressionLevel sets the compression level passed to the format
// writer. Zero selects the format default.
func WithCompressionLevel(level int) Option {
	return func(b *Builder) { b.level = level }
}

// New creates an empty archive builder for the given format.
func New(format Format, opts ...Option) *Builder {
	b := &Builder{
		format:  format,
		modTime: time.Now().UTC().Truncate(time.Second),
		index:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Format returns the archive format.
func (b *Builder) Format() Format {
	return b.format
}

// AddEntry adds or overwrites a named entry.
func (b *Builder) AddEntry(name string, data []byte, opts EntryOptions) {
	name = NormalizeName(name)
	if name == "" {
		return
	}

	if opts.CreateFolders {
		for _, dir := range parentFolders(name) {
			if _, ok := b.index[dir]; ok {
				continue
			}
			b.index[dir] = len(b.entries)
			b.entries = append(b.entries, entry{name: dir, folder: true})
		}
	}

	if i, ok := b.index[name]; ok {
		b.entries[i].data = data
		return
	}
	b.index[name] = len(b.entries)
	b.entries = append(b.entries, entry{name: name, data: data})
}

// Has reports whether an entry with the given name exists.
func (b *Builder) Has(name string) bool {
	_, ok := b.index[NormalizeName(name)]
	return ok
}

// Len returns the number of file entries, excluding folders.
func (b *Builder) Len() int {
	n := 0
	for _, e := range b.entries {
		if !e.folder {
			n++
		}
	}
	return n
}

// Names returns file entry names in insertion order.
func (b *Builder) Names() []string {
	names := make([]string, 0, len(b.entries))
	for _, e := range b.entries {
		if !e.folder {
			names = append(names, e.name)
		}
	}
	return names
}

// Handle describes a finalized archive on disk. The caller owns the file and
// should call Cleanup once it has been consumed.
type Handle struct {
	Path    string
	Format  Format
	Size    int64
	Digest  string // BLAKE3, hex encoded
	Entries int
}

// Cleanup removes the archive file.
func (h *Handle) Cleanup() error {
	if h == nil || h.Path == "" {
		return nil
	}
	if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Finalize serializes all entries into a temporary file and returns a handle
// to it. On error no file is left behind.
func (b *Builder) Finalize(ctx context.Context) (*Handle, error) {
	if b.finalized {
		return nil, ErrFinalized
	}
	b.finalized = true

	f, err := os.CreateTemp(b.tempDir, "kbexport-*"+b.format.Extension())
	if err != nil {
		return nil, fmt.Errorf("create temp archive: %w", err)
	}
	tmpPath := f.Name()

	success := false
	defer func() {
		if !success {
			_ = f.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := blake3.New()
	counter := &countingWriter{}
	out := io.MultiWriter(f, hasher, counter)

	w, err := newFormatWriter(b.format, out, b.level)
	if err != nil {
		return nil, err
	}

	files := 0
	for _, e := range b.entries {
		if err := ctx.Err(); err != nil {
			_ = w.Close()
			return nil, err
		}
		if e.folder {
			err = w.WriteFolder(e.name, b.modTime)
		} else {
			err = w.WriteFile(e.name, e.data, b.modTime)
			files++
		}
		if err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("write entry %s: %w", e.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close %s writer: %w", b.format, err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("sync archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	// Entries are no longer needed; release the memory early.
	b.entries = nil
	b.index = nil

	success = true
	return &Handle{
		Path:    tmpPath,
		Format:  b.format,
		Size:    counter.n,
		Digest:  hex.EncodeToString(hasher.Sum(nil)),
		Entries: files,
	}, nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// NormalizeName returns the name AddEntry stores an entry under. It cleans a
// slash-separated name and strips any leading slash so entries never escape
// the archive root.
func NormalizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	trailing := strings.HasSuffix(name, "/")
	name = strings.TrimLeft(path.Clean("/"+name), "/")
	if name == "" {
		return ""
	}
	if trailing {
		return name + "/"
	}
	return name
}

// parentFolders returns "a/", "a/b/" for "a/b/c".
func parentFolders(name string) []string {
	parts := strings.Split(strings.TrimSuffix(name, "/"), "/")
	if len(parts) < 2 {
		return nil
	}
	folders := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		folders = append(folders, strings.Join(parts[:i], "/")+"/")
	}
	return folders
}
