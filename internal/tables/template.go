package tables

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/JonMunkholm/detailing/internal/logging"
	"github.com/google/uuid"
)

// IDField is the logical field whose value keys extracted rows.
const IDField = "id"

// Info describes a registered template.
type Info struct {
	Key      string   `json:"key" yaml:"key"`
	Name     string   `json:"name" yaml:"name"`
	Priority int      `json:"priority" yaml:"priority"`
	Title    string   `json:"title" yaml:"title"`
	Columns  []string `json:"columns" yaml:"columns"`
	Fields   []string `json:"fields" yaml:"fields"`
}

// Template is a recognition and extraction strategy for one export layout.
type Template interface {
	Info() Info
	Recognize(doc Document) bool
	Extract(ctx context.Context, doc Document, fileDataID string) (map[string]domain.ExtractedDataRow, error)
}

// Field is a logical column and the header names it may appear under.
type Field struct {
	Name    string
	Aliases []string
}

// TitleMatcher decides whether an export title belongs to a layout.
type TitleMatcher func(expected, actual string) bool

// ColumnMatcher decides whether an export header belongs to a layout.
type ColumnMatcher func(expected, headers []string) bool

// Layout is the standard Template: a fixed title and column set, matched
// with pluggable title and column scoring, and a list of fields to extract.
type Layout struct {
	Key      string
	Name     string
	Priority int
	Title    string
	Columns  []string
	Fields   []Field

	MatchTitle   TitleMatcher  // defaults to ExactTitle
	MatchColumns ColumnMatcher // defaults to ExactColumns
}

// Info implements Template.
func (l *Layout) Info() Info {
	fields := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		fields[i] = f.Name
	}
	return Info{
		Key:      l.Key,
		Name:     l.Name,
		Priority: l.Priority,
		Title:    l.Title,
		Columns:  append([]string(nil), l.Columns...),
		Fields:   fields,
	}
}

// Recognize implements Template.
func (l *Layout) Recognize(doc Document) bool {
	matchTitle := l.MatchTitle
	if matchTitle == nil {
		matchTitle = ExactTitle
	}
	matchColumns := l.MatchColumns
	if matchColumns == nil {
		matchColumns = ExactColumns
	}
	return matchTitle(l.Title, doc.Title) && matchColumns(l.Columns, doc.Header)
}

// Extract implements Template. Every field is resolved against the header
// before any row is read; a layout that cannot resolve a field fails the
// whole document with domain.ErrMissingColumn.
//
// Rows whose cell count differs from the header are skipped. Rows sharing
// an id overwrite earlier ones, so the result has one entry per distinct id.
func (l *Layout) Extract(ctx context.Context, doc Document, fileDataID string) (map[string]domain.ExtractedDataRow, error) {
	logger := logging.WithFields(ctx, "template", l.Key)

	index, missing := l.resolve(doc.Header)
	if len(missing) > 0 {
		logger.Warn("unresolved template fields", "fields", missing)
		return nil, fmt.Errorf("%s: %w: %s", l.Name, domain.ErrMissingColumn, strings.Join(missing, ", "))
	}

	rows := make(map[string]domain.ExtractedDataRow)
	counter := 0
	skipped := 0

	for _, r := range doc.Rows {
		if len(r.Cells) != len(doc.Header) {
			skipped++
			logger.Debug("skipping malformed row",
				"line", r.Line,
				"cells", len(r.Cells),
				"want", len(doc.Header),
			)
			continue
		}

		data := make(map[string]string, len(l.Fields))
		for _, f := range l.Fields {
			data[f.Name] = strings.TrimSpace(r.Cells[index[f.Name]])
		}

		counter++
		itemID := data[IDField]
		if prev, exists := rows[itemID]; exists {
			logger.Warn("duplicate item id, later row wins",
				"item_id", itemID,
				"row", counter,
				"replaced_row", prev.Row,
			)
		}

		rows[itemID] = domain.ExtractedDataRow{
			ID:         uuid.NewString(),
			Row:        counter,
			ItemID:     itemID,
			FileDataID: fileDataID,
			Data:       data,
		}
	}

	logger.Debug("rows extracted",
		"valid", counter,
		"distinct", len(rows),
		"skipped", skipped,
	)
	return rows, nil
}

// resolve maps every field to its header index, collecting unresolved names.
func (l *Layout) resolve(header []string) (map[string]int, []string) {
	index := make(map[string]int, len(l.Fields))
	var missing []string
	for _, f := range l.Fields {
		i, ok := ResolveField(f.Aliases, header)
		if !ok {
			missing = append(missing, f.Name)
			continue
		}
		index[f.Name] = i
	}
	return index, missing
}
