package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

var (
	zipMagic  = []byte("PK\x03\x04")
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Contents is a fully loaded archive, used to inspect finished exports.
type Contents struct {
	Format  Format
	folders []string
	order   []string
	files   map[string][]byte
}

// Open reads every entry of the archive at path into memory. The format is
// detected from the file's magic bytes.
func Open(path string) (*Contents, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return Read(data)
}

// Read parses an in-memory archive.
func Read(data []byte) (*Contents, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return readZip(data)
	case bytes.HasPrefix(data, zstdMagic):
		return readTarZstd(data)
	default:
		return nil, errors.New("unrecognized archive format")
	}
}

func newContents(format Format) *Contents {
	return &Contents{Format: format, files: make(map[string][]byte)}
}

func (c *Contents) add(name string, data []byte, folder bool) {
	if folder {
		c.folders = append(c.folders, name)
		return
	}
	if _, ok := c.files[name]; !ok {
		c.order = append(c.order, name)
	}
	c.files[name] = data
}

func readZip(data []byte) (*Contents, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	c := newContents(FormatZip)
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			c.add(f.Name, nil, true)
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		c.add(f.Name, body, false)
	}
	return c, nil
}

func readTarZstd(data []byte) (*Contents, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open zstd: %w", err)
	}
	defer dec.Close()

	c := newContents(FormatTarZstd)
	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag == tar.TypeDir {
			c.add(hdr.Name, nil, true)
			continue
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", hdr.Name, err)
		}
		c.add(hdr.Name, body, false)
	}
	return c, nil
}

// Files returns file entry names in archive order.
func (c *Contents) Files() []string {
	return append([]string(nil), c.order...)
}

// Folders returns folder entry names, sorted.
func (c *Contents) Folders() []string {
	out := append([]string(nil), c.folders...)
	sort.Strings(out)
	return out
}

// Has reports whether a file entry exists.
func (c *Contents) Has(name string) bool {
	_, ok := c.files[name]
	return ok
}

// File returns the content of a file entry.
func (c *Contents) File(name string) ([]byte, bool) {
	data, ok := c.files[name]
	return data, ok
}
