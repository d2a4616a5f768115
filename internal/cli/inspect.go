package cli

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/JonMunkholm/detailing/internal/ingest"
	"github.com/JonMunkholm/detailing/internal/processing"
	"github.com/JonMunkholm/detailing/internal/storage"
	"github.com/JonMunkholm/detailing/internal/tables"
)

// FileReport is the outcome for one archive member.
type FileReport struct {
	Path      string `json:"path" yaml:"path"`
	Extension string `json:"extension" yaml:"extension"`
	Size      int64  `json:"size" yaml:"size"`
	Mimetype  string `json:"mimetype,omitempty" yaml:"mimetype,omitempty"`
	Processed bool   `json:"processed" yaml:"processed"`
	Template  string `json:"template,omitempty" yaml:"template,omitempty"`
	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
	Rows      int    `json:"rows" yaml:"rows"`
	Code      string `json:"code,omitempty" yaml:"code,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`

	data *domain.FileData
}

// Report is the outcome of inspecting one archive.
type Report struct {
	Archive   string       `json:"archive" yaml:"archive"`
	Files     []FileReport `json:"files" yaml:"files"`
	Processed int          `json:"processed" yaml:"processed"`
	Failed    int          `json:"failed" yaml:"failed"`
}

type inspectOptions struct {
	workers     int
	maxSize     int64
	maxUnpacked int64
	workDir     string
	timeout     time.Duration
	rows        bool
}

func newInspectCommand(a *app) *cobra.Command {
	opts := inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <archive.zip>",
		Short: "Unpack an archive and extract its tables",
		Long: `Inspect unpacks a zip archive into a scratch directory, recognizes every
tab-delimited export in it and reports the template matched and the number of
rows extracted. Files that cannot be processed are listed with the reason.

Example:
  detailctl inspect exports.zip
  detailctl inspect exports.zip -o yaml --rows`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.workers = a.v.GetInt("workers")
			opts.maxSize = a.v.GetInt64("max-size")
			opts.maxUnpacked = a.v.GetInt64("max-unpacked")

			format, err := a.format()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			report, err := inspect(ctx, args[0], opts, tables.Default())
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), format, report, opts.rows)
		},
	}

	flags := cmd.Flags()
	flags.Int("workers", 4, "files processed in parallel")
	flags.Int64("max-size", ingest.DefaultMaxSize, "largest accepted archive in bytes")
	flags.Int64("max-unpacked", ingest.DefaultMaxUnpackedSize, "largest total size of the extracted members in bytes")
	flags.StringVar(&opts.workDir, "work-dir", "", "unpack here and keep the files (default: a temporary directory)")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall inspection timeout")
	flags.BoolVar(&opts.rows, "rows", false, "include extracted rows in json and yaml output")
	_ = a.v.BindPFlag("workers", flags.Lookup("workers"))
	_ = a.v.BindPFlag("max-size", flags.Lookup("max-size"))
	_ = a.v.BindPFlag("max-unpacked", flags.Lookup("max-unpacked"))

	return cmd
}

// inspect ingests the archive at archivePath into scratch storage and runs
// every member through the pipeline.
func inspect(ctx context.Context, archivePath string, opts inspectOptions, registry *tables.Registry) (Report, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return Report{}, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Report{}, fmt.Errorf("stat archive: %w", err)
	}

	dir := opts.workDir
	if dir == "" {
		dir, err = os.MkdirTemp("", "detailctl-*")
		if err != nil {
			return Report{}, fmt.Errorf("create scratch dir: %w", err)
		}
		defer os.RemoveAll(dir)
	}

	local, err := storage.NewLocal(dir)
	if err != nil {
		return Report{}, err
	}

	ingestor := ingest.NewIngestor(local,
		ingest.WithMaxSize(opts.maxSize),
		ingest.WithMaxUnpackedSize(opts.maxUnpacked),
	)
	fs, err := ingestor.Ingest(ctx, ingest.Target{JobID: "inspect"}, ingest.Upload{
		Filename: filepath.Base(archivePath),
		Body:     f,
		Size:     info.Size(),
	})
	if err != nil {
		return Report{}, err
	}

	batch := processing.NewPipeline(local, registry, opts.workers).ProcessAll(ctx, fs.Files)
	return buildReport(archivePath, fs, batch), nil
}

func buildReport(archivePath string, fs domain.FileSet, batch processing.BatchResult) Report {
	prefix := path.Join(path.Dir(fs.ArchivePath.Path), storage.MembersDir) + "/"
	report := Report{Archive: archivePath, Files: []FileReport{}}

	for _, f := range batch.Files {
		fr := FileReport{
			Path:      strings.TrimPrefix(f.Path.Path, prefix),
			Extension: f.Extension,
			Size:      f.FileSize,
			Mimetype:  f.Mimetype,
			Processed: f.IsProcessed,
		}
		if f.Data != nil {
			fr.Template = f.Data.Template
			fr.Title = f.Data.Title
			fr.Rows = len(f.Data.Rows)
			fr.data = f.Data
		}
		if err, failed := batch.Errors[f.ID]; failed {
			fr.Code = domain.CodeOf(err)
			fr.Error = err.Error()
			report.Failed++
		}
		if fr.Processed {
			report.Processed++
		}
		report.Files = append(report.Files, fr)
	}

	sort.Slice(report.Files, func(i, j int) bool {
		return report.Files[i].Path < report.Files[j].Path
	})
	return report
}
