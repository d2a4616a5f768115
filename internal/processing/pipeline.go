// Package processing runs detailing files through probing and table
// extraction.
//
// Every file is handled on its own: a failure marks that file unprocessed
// and is reported alongside the result, never stopping its siblings.
package processing

import (
	"context"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/JonMunkholm/detailing/internal/logging"
	"github.com/JonMunkholm/detailing/internal/tables"
)

// DefaultWorkers is the batch parallelism used when none is configured.
const DefaultWorkers = 4

// Resolver maps a stored file path to an absolute filesystem path.
type Resolver interface {
	Resolve(p domain.XPath) (string, error)
}

// Extractor turns a parsed text export into structured data.
type Extractor interface {
	Extract(ctx context.Context, doc tables.Document, fileID string) (domain.FileData, error)
}

// Pipeline processes detailing files.
type Pipeline struct {
	resolver  Resolver
	extractor Extractor
	workers   int
}

// NewPipeline creates a pipeline. workers bounds batch parallelism.
func NewPipeline(resolver Resolver, extractor Extractor, workers int) *Pipeline {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pipeline{resolver: resolver, extractor: extractor, workers: workers}
}

// ProcessFile runs one file through the pipeline. The returned file is
// always usable: on failure it is marked unprocessed and the error says why.
func (p *Pipeline) ProcessFile(ctx context.Context, f domain.DetailingFile) (domain.DetailingFile, error) {
	logger := logging.WithFields(ctx, "file_id", f.ID, "filename", f.Filename)

	if f.Path.IsEmpty() {
		return f.Failed(f.FileSize, f.Mimetype), fmt.Errorf("%s: %w", f.Filename, domain.ErrMissingPath)
	}

	abs, err := p.resolver.Resolve(f.Path)
	if err != nil {
		return f.Failed(f.FileSize, f.Mimetype), fmt.Errorf("resolve %s: %w", f.Path.Path, err)
	}

	probe := Probe(abs)
	if probe.SizeErr != nil {
		logger.Warn("file size probe failed", "path", abs, "error", probe.SizeErr)
	}
	if probe.MimeErr != nil {
		logger.Warn("mimetype probe failed", "path", abs, "error", probe.MimeErr)
	}

	data, err := p.dispatch(ctx, f, abs)
	if err != nil {
		return f.Failed(probe.Size, probe.Mimetype), err
	}
	return f.Processed(data, probe.Size, probe.Mimetype), nil
}

func (p *Pipeline) dispatch(ctx context.Context, f domain.DetailingFile, abs string) (domain.FileData, error) {
	switch f.Extension {
	case "txt":
		return p.extractText(ctx, f, abs)
	case "xls", "xlsx":
		return domain.FileData{}, fmt.Errorf("%s: %w", f.Filename, domain.ErrUnimplemented)
	default:
		return domain.FileData{}, fmt.Errorf("%s (.%s): %w", f.Filename, f.Extension, domain.ErrUnsupportedExtension)
	}
}

func (p *Pipeline) extractText(ctx context.Context, f domain.DetailingFile, abs string) (domain.FileData, error) {
	file, err := os.Open(abs)
	if err != nil {
		return domain.FileData{}, fmt.Errorf("open %s: %w: %v", f.Filename, domain.ErrStorage, err)
	}
	defer file.Close()

	doc, err := tables.Parse(file)
	if err != nil {
		return domain.FileData{}, fmt.Errorf("read %s: %w: %v", f.Filename, domain.ErrStorage, err)
	}

	data, err := p.extractor.Extract(ctx, doc, f.ID)
	if err != nil {
		return domain.FileData{}, fmt.Errorf("%s: %w", f.Filename, err)
	}
	return data, nil
}

// BatchResult is the outcome of processing a file list.
type BatchResult struct {
	// Files is the updated list, in input order.
	Files []domain.DetailingFile

	// Errors maps file id to the reason it stayed unprocessed.
	Errors map[string]error

	// Attempted counts files that were run, excluding already processed ones.
	Attempted int
}

// Processed returns how many files in the batch carry data.
func (r BatchResult) Processed() int {
	n := 0
	for _, f := range r.Files {
		if f.IsProcessed {
			n++
		}
	}
	return n
}

// ProcessAll processes every unprocessed file, at most p.workers at a time.
// Already processed files are passed through unchanged.
func (p *Pipeline) ProcessAll(ctx context.Context, files []domain.DetailingFile) BatchResult {
	out := make([]domain.DetailingFile, len(files))
	errs := make([]error, len(files))
	copy(out, files)

	var g errgroup.Group
	g.SetLimit(p.workers)

	attempted := 0
	for i, f := range files {
		if f.IsProcessed {
			continue
		}
		attempted++
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i], errs[i] = f.Failed(f.FileSize, f.Mimetype), err
				return nil
			}
			out[i], errs[i] = p.ProcessFile(ctx, f)
			return nil
		})
	}
	g.Wait()

	result := BatchResult{Files: out, Errors: map[string]error{}, Attempted: attempted}
	logger := logging.FromContext(ctx)
	for i, err := range errs {
		if err == nil {
			continue
		}
		result.Errors[files[i].ID] = err
		logger.Warn("file not processed",
			"file_id", files[i].ID,
			"filename", files[i].Filename,
			"code", domain.CodeOf(err),
			"error", err,
		)
	}
	return result
}

// ProbeResult holds OS-level facts about a file. Failed probes keep their
// defaults: size -1 and an empty mimetype.
type ProbeResult struct {
	Size     int64
	Mimetype string
	SizeErr  error
	MimeErr  error
}

// Probe reads the size and sniffs the content type of the file at abs.
func Probe(abs string) ProbeResult {
	r := ProbeResult{Size: -1}

	if info, err := os.Stat(abs); err != nil {
		r.SizeErr = err
	} else {
		r.Size = info.Size()
	}

	if mt, err := mimetype.DetectFile(abs); err != nil {
		r.MimeErr = err
	} else {
		r.Mimetype = mt.String()
	}

	return r
}
