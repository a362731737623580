// Package archive unpacks installer archives (zip, 7z, rar) into the
// download cache.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
)

// Formats.
const (
	FormatZip      = "zip"
	FormatSevenZip = "7z"
	FormatRar      = "rar"
)

// FormatOf returns the archive format of path by extension, or "".
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return FormatZip
	case ".7z":
		return FormatSevenZip
	case ".rar":
		return FormatRar
	}
	return ""
}

// IsArchive reports whether path names a supported archive.
func IsArchive(path string) bool { return FormatOf(path) != "" }

// ErrUnsafePath is returned for entries that would land outside the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Extract unpacks src into dst and returns the number of files written.
func Extract(ctx context.Context, src, dst string) (int, error) {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", dst, err)
	}
	switch FormatOf(src) {
	case FormatZip:
		return extractZip(ctx, src, dst)
	case FormatSevenZip:
		return extractSevenZip(ctx, src, dst)
	case FormatRar:
		return extractRar(ctx, src, dst)
	}
	return 0, fmt.Errorf("%s: unsupported archive format", src)
}

// target resolves an entry name below dst.
func target(dst, name string) (string, error) {
	name = filepath.FromSlash(strings.ReplaceAll(name, `\`, "/"))
	path := filepath.Join(dst, name)
	if path != dst && !strings.HasPrefix(path, filepath.Clean(dst)+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return path, nil
}

func writeEntry(path string, mode os.FileMode, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0644
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func extractZip(ctx context.Context, src, dst string) (int, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", src, err)
	}
	defer zr.Close()

	n := 0
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		path, err := target(dst, f.Name)
		if err != nil {
			return n, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return n, err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return n, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		err = writeEntry(path, f.Mode(), rc)
		rc.Close()
		if err != nil {
			return n, fmt.Errorf("writing %s: %w", f.Name, err)
		}
		n++
	}
	return n, nil
}

func extractSevenZip(ctx context.Context, src, dst string) (int, error) {
	r, err := sevenzip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", src, err)
	}
	defer r.Close()

	n := 0
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		path, err := target(dst, f.Name)
		if err != nil {
			return n, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return n, err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return n, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		err = writeEntry(path, f.Mode(), rc)
		rc.Close()
		if err != nil {
			return n, fmt.Errorf("writing %s: %w", f.Name, err)
		}
		n++
	}
	return n, nil
}

func extractRar(ctx context.Context, src, dst string) (int, error) {
	r, err := rardecode.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", src, err)
	}
	defer r.Close()

	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		hdr, err := r.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("reading %s: %w", src, err)
		}
		path, err := target(dst, hdr.Name)
		if err != nil {
			return n, err
		}
		if hdr.IsDir {
			if err := os.MkdirAll(path, 0755); err != nil {
				return n, err
			}
			continue
		}
		if err := writeEntry(path, hdr.Mode(), r); err != nil {
			return n, fmt.Errorf("writing %s: %w", hdr.Name, err)
		}
		n++
	}
}
