package domain

import (
	"path"
	"strings"
	"time"
)

// FileSetLabelLayout is the layout of a file set's default label.
const FileSetLabelLayout = "2006-01-02 15:04:05"

// XPath is a file location, either relative to the archive storage root or absolute.
type XPath struct {
	Path     string `json:"path"`
	Relative bool   `json:"relative"`
}

// RelativePath wraps a storage-relative path. Separators are normalised to "/".
func RelativePath(p string) XPath {
	return XPath{Path: toSlash(p), Relative: true}
}

// AbsolutePath wraps an absolute filesystem path.
func AbsolutePath(p string) XPath {
	return XPath{Path: p}
}

// IsEmpty reports whether the path is missing.
func (x XPath) IsEmpty() bool {
	return strings.TrimSpace(x.Path) == ""
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// FileSet groups the files produced by ingesting one archive.
type FileSet struct {
	ID          string          `json:"id"`
	Label       string          `json:"label"`
	Files       []DetailingFile `json:"files"`
	ArchivePath XPath           `json:"zipArchivePath"`
	CreatedAt   time.Time       `json:"createdDate"`
}

// NewFileSet builds a file set. An empty label defaults to the creation time.
func NewFileSet(id, label string, archive XPath, files []DetailingFile, now time.Time) FileSet {
	if strings.TrimSpace(label) == "" {
		label = now.Format(FileSetLabelLayout)
	}
	return FileSet{
		ID:          id,
		Label:       label,
		Files:       cloneFiles(files),
		ArchivePath: archive,
		CreatedAt:   now,
	}
}

// WithFiles returns a copy of the set whose file list is replaced wholesale.
func (fs FileSet) WithFiles(files []DetailingFile) FileSet {
	fs.Files = cloneFiles(files)
	return fs
}

// ProcessedCount returns how many files carry extracted data.
func (fs FileSet) ProcessedCount() int {
	n := 0
	for _, f := range fs.Files {
		if f.IsProcessed {
			n++
		}
	}
	return n
}

func cloneFiles(files []DetailingFile) []DetailingFile {
	if files == nil {
		return []DetailingFile{}
	}
	out := make([]DetailingFile, len(files))
	copy(out, files)
	return out
}

// DetailingFile is one member of an ingested archive.
type DetailingFile struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Path         XPath     `json:"path"`
	Extension    string    `json:"extension"`
	Filename     string    `json:"filename"`
	IsProcessed  bool      `json:"isProcessed"`
	FileSize     int64     `json:"fileSize"`
	Mimetype     string    `json:"mimetype"`
	ParentFolder string    `json:"parentFolder"`
	CreatedAt    time.Time `json:"creationDate"`
	Data         *FileData `json:"fileData,omitempty"`
}

// NewUnprocessedFile describes an archive member before any processing.
// Filename, extension and parent folder are derived from the path.
func NewUnprocessedFile(id string, p XPath, now time.Time) DetailingFile {
	clean := toSlash(p.Path)
	name := path.Base(clean)
	if clean == "" {
		name = ""
	}
	return DetailingFile{
		ID:           id,
		Label:        name,
		Path:         XPath{Path: clean, Relative: p.Relative},
		Extension:    ExtensionOf(name),
		Filename:     name,
		FileSize:     -1,
		ParentFolder: parentOf(clean),
		CreatedAt:    now,
	}
}

// ExtensionOf returns the lower-cased extension of a filename without the dot.
func ExtensionOf(filename string) string {
	ext := path.Ext(filename)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func parentOf(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// Processed returns a copy marked processed with the given data and probe results.
func (f DetailingFile) Processed(data FileData, size int64, mimetype string) DetailingFile {
	f.IsProcessed = true
	f.FileSize = size
	f.Mimetype = mimetype
	f.Data = &data
	return f
}

// Failed returns a copy marked unprocessed, keeping any earlier data.
func (f DetailingFile) Failed(size int64, mimetype string) DetailingFile {
	f.IsProcessed = false
	f.FileSize = size
	f.Mimetype = mimetype
	return f
}

// FileData is the structured content of one recognized text export.
type FileData struct {
	ID       string                      `json:"id"`
	FileID   string                      `json:"fileId"`
	Template string                      `json:"template"`
	Title    string                      `json:"title"`
	Header   []string                    `json:"header"`
	Lines    map[int]string              `json:"lines"`
	Rows     map[string]ExtractedDataRow `json:"extractedData"`
}

// ExtractedDataRow is one data row keyed by its item id.
type ExtractedDataRow struct {
	ID         string            `json:"id"`
	Row        int               `json:"row"`
	ItemID     string            `json:"itemId"`
	FileDataID string            `json:"fileDataId"`
	Data       map[string]string `json:"data"`
}
