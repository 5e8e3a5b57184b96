package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Format identifies the container format of an archive.
type Format string

const (
	FormatZip     Format = "zip"
	FormatTarZstd Format = "tar.zst"
)

// ParseFormat parses a format name. The empty string selects zip.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "zip":
		return FormatZip, nil
	case "tar.zst", "tzst", "tar.zstd":
		return FormatTarZstd, nil
	default:
		return "", fmt.Errorf("unknown archive format: %s", s)
	}
}

// FormatFromPath detects a format from a file name suffix.
func FormatFromPath(p string) (Format, bool) {
	lower := strings.ToLower(p)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip, true
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return FormatTarZstd, true
	default:
		return "", false
	}
}

// Extension returns the file suffix for the format, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatTarZstd:
		return ".tar.zst"
	default:
		return ".zip"
	}
}

// ContentType returns the MIME type used when serving the archive.
func (f Format) ContentType() string {
	switch f {
	case FormatTarZstd:
		return "application/zstd"
	default:
		return "application/zip"
	}
}

// formatWriter is implemented once per container format.
type formatWriter interface {
	WriteFolder(name string, modTime time.Time) error
	WriteFile(name string, data []byte, modTime time.Time) error
	Close() error
}

func newFormatWriter(format Format, w io.Writer, level int) (formatWriter, error) {
	switch format {
	case FormatZip:
		return newZipWriter(w, level), nil
	case FormatTarZstd:
		return newTarZstdWriter(w, level)
	default:
		return nil, fmt.Errorf("unknown archive format: %s", format)
	}
}

type zipWriter struct {
	zw *zip.Writer
}

func newZipWriter(w io.Writer, level int) *zipWriter {
	zw := zip.NewWriter(w)
	if level != 0 {
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, level)
		})
	}
	return &zipWriter{zw: zw}
}

func (z *zipWriter) WriteFolder(name string, modTime time.Time) error {
	_, err := z.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: modTime,
	})
	return err
}

func (z *zipWriter) WriteFile(name string, data []byte, modTime time.Time) error {
	fw, err := z.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modTime,
	})
	if err != nil {
		return err
	}
	_, err = fw.Write(data)
	return err
}

func (z *zipWriter) Close() error {
	return z.zw.Close()
}

type tarZstdWriter struct {
	enc *zstd.Encoder
	tw  *tar.Writer
}

func newTarZstdWriter(w io.Writer, level int) (*tarZstdWriter, error) {
	var opts []zstd.EOption
	if level != 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	}
	enc, err := zstd.NewWriter(w, opts...)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &tarZstdWriter{enc: enc, tw: tar.NewWriter(enc)}, nil
}

func (t *tarZstdWriter) WriteFolder(name string, modTime time.Time) error {
	return t.tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeDir,
		Name:     name,
		Mode:     0755,
		ModTime:  modTime,
	})
}

func (t *tarZstdWriter) WriteFile(name string, data []byte, modTime time.Time) error {
	if err := t.tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     0644,
		Size:     int64(len(data)),
		ModTime:  modTime,
	}); err != nil {
		return err
	}
	_, err := t.tw.Write(data)
	return err
}

func (t *tarZstdWriter) Close() error {
	if err := t.tw.Close(); err != nil {
		_ = t.enc.Close()
		return err
	}
	return t.enc.Close()
}
