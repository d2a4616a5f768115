package processing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/JonMunkholm/detailing/internal/storage"
	"github.com/JonMunkholm/detailing/internal/tables"
	_ "github.com/JonMunkholm/detailing/internal/tables/templates"
)

const fixtures = "../tables/templates/testdata"

func newPipeline(t *testing.T, root string) *Pipeline {
	t.Helper()
	local, err := storage.NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	return NewPipeline(local, tables.Default(), 2)
}

func file(id, rel string) domain.DetailingFile {
	return domain.NewUnprocessedFile(id, domain.RelativePath(rel), time.Now())
}

func TestProcessFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.txt", "MEETING NOTES\nWho\tWhat\nme\tthat\n")
	writeFile(t, root, "plan.pdf", "%PDF-1.4\n%âãÏÓ\n")
	writeFile(t, root, "sched.xlsx", "PK")

	p := newPipeline(t, fixtures)
	other := newPipeline(t, root)

	tests := []struct {
		name     string
		pipeline *Pipeline
		file     domain.DetailingFile
		wantErr  error
		wantRows int
	}{
		{"beam export", p, file("1", "Beam Listing.txt"), nil, 19},
		{"truss export", p, file("2", "260MM TRUSS LISTING.txt"), nil, 28},
		{"sheet export", p, file("3", "SHEETS.txt"), nil, 9},
		{"unknown text layout", other, file("4", "notes.txt"), domain.ErrNotRecognized, 0},
		{"pdf", other, file("5", "plan.pdf"), domain.ErrUnsupportedExtension, 0},
		{"spreadsheet", other, file("6", "sched.xlsx"), domain.ErrUnimplemented, 0},
		{"missing file", other, file("7", "gone.txt"), domain.ErrStorage, 0},
		{"empty path", other, domain.DetailingFile{ID: "8"}, domain.ErrMissingPath, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.pipeline.ProcessFile(context.Background(), tt.file)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ProcessFile() error = %v, want %v", err, tt.wantErr)
				}
				if got.IsProcessed || got.Data != nil {
					t.Errorf("failed file IsProcessed = %v, Data = %v", got.IsProcessed, got.Data)
				}
				return
			}

			if err != nil {
				t.Fatalf("ProcessFile() error = %v", err)
			}
			if !got.IsProcessed || got.Data == nil {
				t.Fatalf("IsProcessed = %v, Data = %v", got.IsProcessed, got.Data)
			}
			if len(got.Data.Rows) != tt.wantRows {
				t.Errorf("rows = %d, want %d", len(got.Data.Rows), tt.wantRows)
			}
			if got.Data.FileID != tt.file.ID {
				t.Errorf("FileID = %q, want %q", got.Data.FileID, tt.file.ID)
			}
			if got.FileSize <= 0 {
				t.Errorf("FileSize = %d, want positive", got.FileSize)
			}
			if got.Mimetype == "" {
				t.Error("Mimetype is empty")
			}
		})
	}
}

func TestProcessFile_ProbesUnsupportedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "plan.pdf", "%PDF-1.4\n")

	got, err := newPipeline(t, root).ProcessFile(context.Background(), file("1", "plan.pdf"))
	if !errors.Is(err, domain.ErrUnsupportedExtension) {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if got.FileSize != 9 {
		t.Errorf("FileSize = %d, want 9", got.FileSize)
	}
	if got.Mimetype != "application/pdf" {
		t.Errorf("Mimetype = %q, want application/pdf", got.Mimetype)
	}
}

func TestProcessFile_FailureResetsProcessedFlag(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "SHEET LISTING\nID\tQty\tLength\nS1\t1\t100\n")

	p := newPipeline(t, root)
	done, err := p.ProcessFile(context.Background(), file("1", "a.txt"))
	if err != nil || !done.IsProcessed {
		t.Fatalf("first ProcessFile() = %v, %v", done.IsProcessed, err)
	}

	if err := os.Remove(filepath.Join(root, "a.txt")); err != nil {
		t.Fatal(err)
	}

	again, err := p.ProcessFile(context.Background(), done)
	if err == nil {
		t.Fatal("ProcessFile() on removed file succeeded")
	}
	if again.IsProcessed {
		t.Error("IsProcessed = true after failed attempt")
	}
	if again.FileSize != -1 || again.Mimetype != "" {
		t.Errorf("probe defaults = (%d, %q), want (-1, \"\")", again.FileSize, again.Mimetype)
	}
}

func TestProcessAll_IsolatesFailures(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"Beam Listing.txt", "260MM TRUSS LISTING.txt", "SHEETS.txt"} {
		body, err := os.ReadFile(filepath.Join(fixtures, name))
		if err != nil {
			t.Fatal(err)
		}
		writeFile(t, root, name, string(body))
	}
	writeFile(t, root, "a.pdf", "%PDF-1.4")
	writeFile(t, root, "b.pdf", "%PDF-1.4")

	files := []domain.DetailingFile{
		file("beam", "Beam Listing.txt"),
		file("pdf-a", "a.pdf"),
		file("truss", "260MM TRUSS LISTING.txt"),
		file("pdf-b", "b.pdf"),
		file("sheet", "SHEETS.txt"),
	}

	result := newPipeline(t, root).ProcessAll(context.Background(), files)

	if len(result.Files) != len(files) {
		t.Fatalf("files = %d, want %d", len(result.Files), len(files))
	}
	wantRows := map[string]int{"beam": 19, "truss": 28, "sheet": 9}
	for i, f := range result.Files {
		if f.ID != files[i].ID {
			t.Errorf("Files[%d].ID = %s, want %s (order changed)", i, f.ID, files[i].ID)
		}
		rows, ok := wantRows[f.ID]
		if !ok {
			if f.IsProcessed || f.Data != nil {
				t.Errorf("%s processed, want unprocessed", f.ID)
			}
			continue
		}
		if !f.IsProcessed || f.Data == nil {
			t.Errorf("%s unprocessed: %v", f.ID, result.Errors[f.ID])
			continue
		}
		if len(f.Data.Rows) != rows {
			t.Errorf("%s rows = %d, want %d", f.ID, len(f.Data.Rows), rows)
		}
	}

	if result.Attempted != 5 || result.Processed() != 3 || len(result.Errors) != 2 {
		t.Errorf("attempted=%d processed=%d errors=%d, want 5/3/2", result.Attempted, result.Processed(), len(result.Errors))
	}
	if !errors.Is(result.Errors["pdf-a"], domain.ErrUnsupportedExtension) {
		t.Errorf("pdf-a error = %v", result.Errors["pdf-a"])
	}
}

func TestProcessAll_SkipsProcessedFiles(t *testing.T) {
	done := file("done", "missing.txt").Processed(domain.FileData{ID: "d"}, 10, "text/plain")
	result := newPipeline(t, t.TempDir()).ProcessAll(context.Background(), []domain.DetailingFile{done})

	if result.Attempted != 0 {
		t.Errorf("Attempted = %d, want 0", result.Attempted)
	}
	if !result.Files[0].IsProcessed || result.Files[0].Data.ID != "d" {
		t.Errorf("processed file changed: %+v", result.Files[0])
	}
}

func TestProbe_Missing(t *testing.T) {
	r := Probe(filepath.Join(t.TempDir(), "nope"))
	if r.Size != -1 || r.Mimetype != "" {
		t.Errorf("Probe() = (%d, %q), want (-1, \"\")", r.Size, r.Mimetype)
	}
	if r.SizeErr == nil || r.MimeErr == nil {
		t.Error("Probe() did not report errors")
	}
}

func writeFile(t *testing.T, root, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}
