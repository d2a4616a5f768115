// Package ingest turns an uploaded archive into a FileSet of unprocessed
// detailing files.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/JonMunkholm/detailing/internal/logging"
	"github.com/JonMunkholm/detailing/internal/storage"
)

// DefaultMaxSize is the upload size limit used when none is configured.
const DefaultMaxSize int64 = 100_000_000

// DefaultMaxUnpackedSize caps the total extracted bytes of one archive.
const DefaultMaxUnpackedSize int64 = 1_000_000_000

// Storage is the part of archive storage ingestion needs.
type Storage interface {
	Save(ctx context.Context, dir, filename string, r io.Reader) (storage.Entry, error)
	Unpack(ctx context.Context, archive domain.XPath, limit int64) (storage.Unpacked, error)
	RemoveDir(dir string) error
}

// Upload is one archive as received from a client.
type Upload struct {
	Filename string
	Label    string
	Body     io.Reader

	// Size is the declared length, or -1 when unknown.
	Size int64
}

// Ingestor stores and unpacks archives.
type Ingestor struct {
	storage     Storage
	limiter     *Limiter
	maxSize     int64
	maxUnpacked int64

	now   func() time.Time
	newID func() string
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLimiter bounds concurrent ingestions.
func WithLimiter(l *Limiter) Option {
	return func(i *Ingestor) { i.limiter = l }
}

// WithMaxSize sets the largest accepted archive in bytes.
func WithMaxSize(n int64) Option {
	return func(i *Ingestor) {
		if n > 0 {
			i.maxSize = n
		}
	}
}

// WithMaxUnpackedSize sets the largest total size of an archive's members
// once extracted.
func WithMaxUnpackedSize(n int64) Option {
	return func(i *Ingestor) {
		if n > 0 {
			i.maxUnpacked = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) { i.now = now }
}

// NewIngestor creates an ingestor writing through s.
func NewIngestor(s Storage, opts ...Option) *Ingestor {
	i := &Ingestor{
		storage: s,
		maxSize:     DefaultMaxSize,
		maxUnpacked: DefaultMaxUnpackedSize,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest persists the archive under the target's directory, unpacks it into
// the members folder beside it and returns a new FileSet with one unprocessed
// file per member.
func (i *Ingestor) Ingest(ctx context.Context, target Target, up Upload) (domain.FileSet, error) {
	if err := domain.ValidateJobID(target.JobID); err != nil {
		return domain.FileSet{}, err
	}
	if up.Body == nil {
		return domain.FileSet{}, domain.ErrEmptyUpload
	}
	if up.Size > i.maxSize {
		return domain.FileSet{}, fmt.Errorf("%d bytes: %w", up.Size, domain.ErrUploadTooLarge)
	}

	body := bufio.NewReader(up.Body)
	if _, err := body.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.FileSet{}, domain.ErrEmptyUpload
		}
		return domain.FileSet{}, fmt.Errorf("read upload: %w", err)
	}

	if i.limiter != nil {
		if err := i.limiter.Acquire(ctx); err != nil {
			return domain.FileSet{}, err
		}
		defer i.limiter.Release()
	}

	now := i.now().UTC()
	dir := ArchiveDir(target, now)
	logger := logging.WithFields(ctx, "job_id", target.JobID, "dir", dir)

	saved, err := i.storage.Save(ctx, dir, up.Filename, &capReader{r: body, max: i.maxSize})
	if err != nil {
		return domain.FileSet{}, fmt.Errorf("save archive: %w", err)
	}

	unpacked, err := i.storage.Unpack(ctx, domain.RelativePath(saved.Rel), i.maxUnpacked)
	if err != nil {
		logger.Warn("archive could not be unpacked", "archive", saved.Rel, "error", err)
		if rmErr := i.storage.RemoveDir(dir); rmErr != nil {
			logger.Error("failed to remove rejected archive", "error", rmErr)
		}
		return domain.FileSet{}, fmt.Errorf("unpack archive: %w", err)
	}

	files := make([]domain.DetailingFile, 0, len(unpacked.Members))
	for _, m := range unpacked.Members {
		files = append(files, domain.NewUnprocessedFile(i.newID(), domain.RelativePath(m.Rel), now))
	}

	fs := domain.NewFileSet(i.newID(), up.Label, domain.RelativePath(unpacked.Archive.Rel), files, now)
	logger.Info("archive ingested", "file_set_id", fs.ID, "files", len(files))
	return fs, nil
}

// Discard removes everything stored for fs. It is used when a file set was
// ingested but could not be attached to its claim.
func (i *Ingestor) Discard(fs domain.FileSet) error {
	if fs.ArchivePath.IsEmpty() || !fs.ArchivePath.Relative {
		return fmt.Errorf("file set %s has no stored archive: %w", fs.ID, domain.ErrStorage)
	}
	return i.storage.RemoveDir(path.Dir(fs.ArchivePath.Path))
}

// capReader fails once more than max bytes have been read.
type capReader struct {
	r    io.Reader
	max  int64
	read int64
}

func (c *capReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.read > c.max {
		return n, fmt.Errorf("more than %d bytes: %w", c.max, domain.ErrUploadTooLarge)
	}
	return n, err
}
