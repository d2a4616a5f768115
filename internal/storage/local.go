// Package storage keeps uploaded archives and their extracted members on the
// local filesystem under a single root directory.
//
// Paths handed out by this package are relative to the root and use "/"
// separators, so they stay valid if the root is moved.
package storage

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/detailing/internal/domain"
)

// Entry is one stored file, addressed both ways.
type Entry struct {
	Abs string `json:"abs"`
	Rel string `json:"rel"`
}

// Unpacked describes an archive and the members extracted beside it.
type Unpacked struct {
	Archive Entry
	Members []Entry
}

// Local is archive storage rooted at a directory.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed.
func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute storage root.
func (l *Local) Root() string {
	return l.root
}

// Save writes r to dir/filename under the root and returns where it landed.
// The file must not already exist. A partial file is removed on failure.
func (l *Local) Save(ctx context.Context, dir, filename string, r io.Reader) (Entry, error) {
	name := SanitizeFilename(filename)
	rel := path.Join(filepath.ToSlash(dir), name)

	abs, err := l.abs(rel)
	if err != nil {
		return Entry{}, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return Entry{}, fmt.Errorf("create %s: %w: %v", dir, domain.ErrStorage, err)
	}

	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Entry{}, fmt.Errorf("create %s: %w: %v", rel, domain.ErrStorage, err)
	}

	_, copyErr := io.Copy(f, contextReader{ctx: ctx, r: r})
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(abs)
		if copyErr == nil {
			copyErr = closeErr
		}
		var derr *domain.Error
		if errors.As(copyErr, &derr) || errors.Is(copyErr, context.Canceled) || errors.Is(copyErr, context.DeadlineExceeded) {
			return Entry{}, fmt.Errorf("write %s: %w", rel, copyErr)
		}
		return Entry{}, fmt.Errorf("write %s: %w: %v", rel, domain.ErrStorage, copyErr)
	}

	return Entry{Abs: abs, Rel: rel}, nil
}

// MembersDir is the folder beside a stored archive that its members are
// extracted into. No member path can resolve to the archive itself.
const MembersDir = "files"

// Unpack extracts a zip archive into MembersDir beside it, keeping the
// archive's internal folder structure. A positive limit caps the total
// uncompressed bytes written; going over it fails with ErrUploadTooLarge.
func (l *Local) Unpack(ctx context.Context, archive domain.XPath, limit int64) (Unpacked, error) {
	archiveAbs, err := l.Resolve(archive)
	if err != nil {
		return Unpacked{}, err
	}
	archiveRel, err := l.rel(archiveAbs)
	if err != nil {
		return Unpacked{}, err
	}

	zr, err := zip.OpenReader(archiveAbs)
	if err != nil {
		return Unpacked{}, fmt.Errorf("open archive %s: %w: %v", archiveRel, domain.ErrStorage, err)
	}
	defer zr.Close()

	destRel := path.Join(path.Dir(archiveRel), MembersDir)
	out := Unpacked{Archive: Entry{Abs: archiveAbs, Rel: archiveRel}}

	budget := &unpackBudget{limit: limit}
	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return Unpacked{}, err
		}
		if zf.FileInfo().IsDir() {
			continue
		}

		memberName, err := memberPath(zf.Name)
		if err != nil {
			return Unpacked{}, fmt.Errorf("archive %s: %w: %v", archiveRel, domain.ErrStorage, err)
		}
		if err := budget.admit(zf.UncompressedSize64); err != nil {
			return Unpacked{}, fmt.Errorf("archive %s: %w", archiveRel, err)
		}

		entry, err := l.extract(zf, path.Join(destRel, memberName), budget)
		if err != nil {
			return Unpacked{}, err
		}
		out.Members = append(out.Members, entry)
	}

	return out, nil
}

func (l *Local) extract(zf *zip.File, rel string, budget *unpackBudget) (Entry, error) {
	abs, err := l.abs(rel)
	if err != nil {
		return Entry{}, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return Entry{}, fmt.Errorf("extract %s: %w: %v", rel, domain.ErrStorage, err)
	}

	src, err := zf.Open()
	if err != nil {
		return Entry{}, fmt.Errorf("extract %s: %w: %v", rel, domain.ErrStorage, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return Entry{}, fmt.Errorf("extract %s: %w: %v", rel, domain.ErrStorage, err)
	}
	n, err := io.Copy(dst, budget.reader(src))
	if err != nil {
		dst.Close()
		return Entry{}, fmt.Errorf("extract %s: %w: %v", rel, domain.ErrStorage, err)
	}
	if err := dst.Close(); err != nil {
		return Entry{}, fmt.Errorf("extract %s: %w: %v", rel, domain.ErrStorage, err)
	}
	if err := budget.spend(n); err != nil {
		return Entry{}, fmt.Errorf("extract %s: %w", rel, err)
	}

	return Entry{Abs: abs, Rel: rel}, nil
}

// unpackBudget tracks uncompressed bytes against a limit. The declared size
// in the zip header is checked first, then the bytes actually written, since
// headers can lie.
type unpackBudget struct {
	limit int64
	used  int64
}

func (b *unpackBudget) remaining() int64 {
	return b.limit - b.used
}

func (b *unpackBudget) admit(declared uint64) error {
	if b.limit <= 0 {
		return nil
	}
	if declared > uint64(b.remaining()) {
		return fmt.Errorf("unpacked size over %d bytes: %w", b.limit, domain.ErrUploadTooLarge)
	}
	return nil
}

// reader lets one byte past the budget through so spend can detect it.
func (b *unpackBudget) reader(r io.Reader) io.Reader {
	if b.limit <= 0 {
		return r
	}
	return io.LimitReader(r, b.remaining()+1)
}

func (b *unpackBudget) spend(n int64) error {
	if b.limit <= 0 {
		return nil
	}
	b.used += n
	if b.used > b.limit {
		return fmt.Errorf("unpacked size over %d bytes: %w", b.limit, domain.ErrUploadTooLarge)
	}
	return nil
}

// RemoveDir deletes dir and everything below it. The root itself cannot be
// removed.
func (l *Local) RemoveDir(dir string) error {
	abs, err := l.abs(filepath.ToSlash(dir))
	if err != nil {
		return err
	}
	if abs == l.root {
		return fmt.Errorf("refusing to remove storage root: %w", domain.ErrStorage)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("remove %s: %w: %v", dir, domain.ErrStorage, err)
	}
	return nil
}

// Open streams a stored file.
func (l *Local) Open(p domain.XPath) (io.ReadCloser, error) {
	abs, err := l.Resolve(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %v", p.Path, domain.ErrStorage, err)
	}
	return f, nil
}

// Resolve returns the absolute filesystem path of p. Relative paths must
// stay inside the root.
func (l *Local) Resolve(p domain.XPath) (string, error) {
	if p.IsEmpty() {
		return "", domain.ErrMissingPath
	}
	if !p.Relative {
		return filepath.Clean(p.Path), nil
	}
	return l.abs(p.Path)
}

func (l *Local) abs(rel string) (string, error) {
	abs := filepath.Join(l.root, filepath.FromSlash(rel))
	if abs != l.root && !strings.HasPrefix(abs, l.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root: %w", rel, domain.ErrStorage)
	}
	return abs, nil
}

func (l *Local) rel(abs string) (string, error) {
	rel, err := filepath.Rel(l.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside storage root: %w", abs, domain.ErrStorage)
	}
	return filepath.ToSlash(rel), nil
}

// memberPath cleans a zip entry name, rejecting absolute and escaping paths.
func memberPath(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	clean := path.Clean("/" + name)[1:]
	if clean == "" || strings.HasPrefix(name, "/") || strings.Contains("/"+name+"/", "/../") {
		return "", fmt.Errorf("unsafe entry name %q", name)
	}
	return clean, nil
}

// SanitizeFilename keeps the base name of an uploaded file and replaces
// characters that are unsafe in paths.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == '/', r == ':', r == '*', r == '?', r == '"', r == '<', r == '>', r == '|':
			return '_'
		}
		return r
	}, name)
	name = strings.TrimLeft(strings.TrimSpace(name), ".")
	if name == "" {
		return "upload.zip"
	}
	return name
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
