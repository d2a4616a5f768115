package templates

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/JonMunkholm/detailing/internal/tables"
)

func loadFixture(t *testing.T, name string) tables.Document {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()

	doc, err := tables.Parse(f)
	if err != nil {
		t.Fatalf("Parse(%s) error = %v", name, err)
	}
	return doc
}

func mustTemplate(t *testing.T, key string) tables.Template {
	t.Helper()
	tpl, ok := tables.Default().Get(key)
	if !ok {
		t.Fatalf("template %q not registered", key)
	}
	return tpl
}

func TestRegisteredProbeOrder(t *testing.T) {
	all := tables.Default().All()
	want := []string{"beam", "truss", "sheet"}

	if len(all) != len(want) {
		t.Fatalf("registered = %d, want %d", len(all), len(want))
	}
	for i, tpl := range all {
		if got := tpl.Info().Key; got != want[i] {
			t.Errorf("All()[%d] = %s, want %s", i, got, want[i])
		}
	}
}

func TestRecognize_OnlyOneTemplateAccepts(t *testing.T) {
	tests := []struct {
		name string
		doc  tables.Document
		want string
	}{
		{
			name: "beam with shuffled and extra columns",
			doc:  tables.ParseLines([]string{"beam listing", "Notes\tbeam\tID\tLENGTH\tQty"}),
			want: "beam",
		},
		{
			name: "truss",
			doc: tables.ParseLines([]string{
				"CW JOIST SCHEDULE",
				"ID\tNo\tTruss Length\tType\tLeft End Cap\tRight End Cap\tNEC\tSTD\tHas Peno\tCut Webs\tTruss Grouping Pack",
			}),
			want: "truss",
		},
		{
			name: "sheet",
			doc:  tables.ParseLines([]string{"SHEET LISTING", "ID\tQty\tLength"}),
			want: "sheet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, tpl := range tables.Default().All() {
				key := tpl.Info().Key
				if got := tpl.Recognize(tt.doc); got != (key == tt.want) {
					t.Errorf("%s.Recognize() = %v", key, got)
				}
			}
		})
	}
}

func TestTruss_TitleTolerance(t *testing.T) {
	header := "ID\tNo\tTruss Length\tType\tLeft End Cap\tRight End Cap\tNEC\tSTD\tHas Peno\tCut Webs\tTruss Grouping Pack"
	truss := mustTemplate(t, "truss")

	tests := []struct {
		title string
		want  bool
	}{
		{"CW JOIST SCHEDULE", true},
		{"JOIST SCHEDULE", true},
		{"CW SCHEDULE", true},
		{"CW JOIST", true},
		{"SCHEDULE", false},
		{"CW", false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			doc := tables.ParseLines([]string{tt.title, header})
			if got := truss.Recognize(doc); got != tt.want {
				t.Errorf("Recognize(%q) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}
}

func TestBeam_MissingColumnRejected(t *testing.T) {
	beam := mustTemplate(t, "beam")
	doc := tables.ParseLines([]string{"BEAM LISTING", "ID\tQty\tLength\tNotes"})
	if beam.Recognize(doc) {
		t.Error("Recognize() = true for header without Beam column")
	}
}

func TestExtractFixtures(t *testing.T) {
	tests := []struct {
		file     string
		template string
		rows     int
	}{
		{"Beam Listing.txt", "beam", 19},
		{"260MM TRUSS LISTING.txt", "truss", 28},
		{"SHEETS.txt", "sheet", 9},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			doc := loadFixture(t, tt.file)

			data, err := tables.Default().Extract(context.Background(), doc, "file")
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if data.Template != tt.template {
				t.Errorf("Template = %s, want %s", data.Template, tt.template)
			}
			if len(data.Rows) != tt.rows {
				t.Errorf("rows = %d, want %d", len(data.Rows), tt.rows)
			}

			fields := mustTemplate(t, tt.template).Info().Fields
			for id, row := range data.Rows {
				if row.ItemID != id {
					t.Errorf("row keyed %q has ItemID %q", id, row.ItemID)
				}
				if len(row.Data) != len(fields) {
					t.Errorf("row %s has %d fields, want %d", id, len(row.Data), len(fields))
				}
			}
		})
	}
}

func TestTruss_FieldValues(t *testing.T) {
	doc := tables.ParseLines([]string{
		"CW JOIST SCHEDULE",
		"ID\tNo\tTruss Length (mm)\tType\tLeft End Cap\tRight End Cap\tNEC\tSTD\tP.Has Peno\tP.Cut Webs\tTruss Grouping Pack",
		"T1\t2\t4200\tCW260\tLEC1\tREC2\t1\t0\tY\tW3\tPK1",
	})

	rows, err := mustTemplate(t, "truss").Extract(context.Background(), doc, "d")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := map[string]string{
		"id":                  "T1",
		"qty":                 "2",
		"len":                 "4200",
		"type":                "CW260",
		"leftEndCap":          "LEC1",
		"rightEndCap":         "REC2",
		"notchedEndCap":       "1",
		"standardEndCap":      "0",
		"hasPenetration":      "Y",
		"penetrationPosition": "W3",
		"trussGroup":          "PK1",
	}
	got := rows["T1"].Data
	for field, value := range want {
		if got[field] != value {
			t.Errorf("%s = %q, want %q", field, got[field], value)
		}
	}
}

func TestExtract_ValidAndMalformedRows(t *testing.T) {
	lines := []string{"SHEET LISTING", "ID\tQty\tLength"}
	for i := 0; i < 6; i++ {
		lines = append(lines, string(rune('A'+i))+"\t1\t1000")
	}
	lines = append(lines, "X\t1", "Y", "Z\t1\t2\t3")

	data, err := tables.Default().Extract(context.Background(), tables.ParseLines(lines), "f")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(data.Rows) != 6 {
		t.Errorf("rows = %d, want 6", len(data.Rows))
	}
}

func TestExtract_Unrecognized(t *testing.T) {
	doc := tables.ParseLines([]string{"DELIVERY DOCKET", "ID\tQty\tLength"})
	_, err := tables.Default().Extract(context.Background(), doc, "f")
	if !errors.Is(err, domain.ErrNotRecognized) {
		t.Errorf("Extract() error = %v, want %v", err, domain.ErrNotRecognized)
	}
}
