package tables

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxLineBytes bounds a single export line.
const maxLineBytes = 1 << 20

// Document is a text export split into title, header and data rows.
type Document struct {
	Title  string
	Header []string
	Rows   []Row

	// Lines holds every raw line keyed by its 1-based line number.
	Lines map[int]string
}

// Row is one data line split into cells.
type Row struct {
	Line  int
	Cells []string
}

// Parse reads an export. Each line is trimmed before it is split on tabs,
// matching how the exporting tools pad their output.
func Parse(r io.Reader) (Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Document{}, fmt.Errorf("read export: %w", err)
	}
	return ParseLines(lines), nil
}

// ParseLines builds a Document from already-split lines.
func ParseLines(lines []string) Document {
	doc := Document{Lines: make(map[int]string, len(lines))}

	for i, raw := range lines {
		if i == 0 {
			raw = strings.TrimPrefix(raw, "\ufeff")
		}
		doc.Lines[i+1] = raw

		trimmed := strings.TrimSpace(raw)
		switch i {
		case 0:
			doc.Title = trimmed
		case 1:
			doc.Header = strings.Split(trimmed, "\t")
		default:
			doc.Rows = append(doc.Rows, Row{Line: i + 1, Cells: strings.Split(trimmed, "\t")})
		}
	}

	return doc
}
