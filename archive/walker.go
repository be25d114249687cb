// Package archive locates MEI pages in a single file, a directory tree or a
// zip archive. Walk is a thin abstraction on top of "archive/zip".
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"
	"github.com/maruel/natural"
)

// ErrNotFound is returned by Sources when the source path does not exist
// either on disk or inside an archive.
var ErrNotFound = errors.New("input source was not found")

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. The archive argument contains path to archive passed to Walk
// The file argument is the zip.File structure for file in archive which satisfies
// match condition. If an error is returned, processing stops.
type WalkFunc func(archive string, file *zip.File) error

// SourceFunc is called by Sources for every MEI page found. Name is the page
// path relative to the source (base name for a plain file).
type SourceFunc func(name string, r io.Reader) error

// Walk walks the all files in the archive which satisfy match condition,
// calling walkFn for each item. Entries are visited in natural name order.
// Entries with path traversal components ("..") or absolute paths fail the
// walk to prevent Zip Slip attacks.
func Walk(archive, pattern string, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	files := make(map[string]*zip.File, len(r.File))
	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if !f.FileInfo().IsDir() && strings.HasPrefix(name, pattern) {
			files[name] = f
			names = append(names, name)
		}
	}
	sort.Sort(natural.StringSlice(names))
	for _, name := range names {
		if err := walkFn(archive, files[name]); err != nil {
			return err
		}
	}
	return nil
}

// IsMEI reports whether name looks like an MEI page judging by extension.
func IsMEI(name string) bool {
	switch strings.ToLower(path.Ext(filepath.ToSlash(name))) {
	case ".mei", ".xml":
		return true
	}
	return false
}

// IsArchive sniffs the file header and reports whether it is a zip archive.
func IsArchive(name string) (bool, error) {
	f, err := os.Open(name)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return filetype.Is(head[:n], "zip"), nil
}

// Sources calls fn for every MEI page under src. The src may name an MEI
// file, a directory (searched recursively, archives included), a zip archive
// or a path inside a zip archive ("pages.zip/folio-1").
func Sources(ctx context.Context, src string, fn SourceFunc) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}
		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// probably path in archive
			continue
		}
		if fi.IsDir() {
			if len(tail) != 0 {
				return fmt.Errorf("%w: (%s) => (%s)", ErrNotFound, head, strings.TrimPrefix(src, head))
			}
			return walkDir(ctx, head, fn)
		}
		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s)", head)
		}

		archive, err := IsArchive(head)
		if err != nil {
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if archive {
			inner := strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			return walkArchive(ctx, head, filepath.ToSlash(inner), "", fn)
		}
		if len(tail) != 0 {
			return fmt.Errorf("%w: (%s) => (%s)", ErrNotFound, head, strings.TrimPrefix(src, head))
		}
		return openFile(head, filepath.Base(head), fn)
	}
	return fmt.Errorf("%w: (%s)", ErrNotFound, src)
}

func walkDir(ctx context.Context, dir string, fn SourceFunc) error {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Sort(natural.StringSlice(paths))

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		archive, err := IsArchive(p)
		if err != nil {
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		switch {
		case archive:
			err = walkArchive(ctx, p, "", rel, fn)
		case IsMEI(p):
			err = openFile(p, rel, fn)
		default:
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func walkArchive(ctx context.Context, archive, pattern, prefix string, fn SourceFunc) error {
	return Walk(archive, pattern, func(_ string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !IsMEI(f.Name) {
			return nil
		}
		r, err := f.Open()
		if err != nil {
			return fmt.Errorf("unable to open %q in archive: %w", f.Name, err)
		}
		defer r.Close()
		return fn(path.Join(filepath.ToSlash(prefix), f.Name), r)
	})
}

func openFile(name, rel string, fn SourceFunc) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(rel, f)
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
