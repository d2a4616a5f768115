package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/JonMunkholm/detailing/internal/tables"
)

// rowsReport is a Report with the extracted rows attached.
type rowsReport struct {
	Archive   string         `json:"archive" yaml:"archive"`
	Files     []fileWithRows `json:"files" yaml:"files"`
	Processed int            `json:"processed" yaml:"processed"`
	Failed    int            `json:"failed" yaml:"failed"`
}

type fileWithRows struct {
	FileReport `yaml:",inline"`
	Data       []map[string]string `json:"data,omitempty" yaml:"data,omitempty"`
}

func writeReport(w io.Writer, format string, r Report, withRows bool) error {
	var v any = r
	if withRows {
		v = attachRows(r)
	}

	switch format {
	case "json":
		return writeJSON(w, v)
	case "yaml":
		return writeYAML(w, v)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSIZE\tTEMPLATE\tROWS\tSTATUS")
	for _, f := range r.Files {
		status := "ok"
		if !f.Processed {
			status = f.Code
			if status == "" {
				status = "-"
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\n", f.Path, f.Size, orDash(f.Template), f.Rows, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d of %d files processed\n", r.Processed, len(r.Files))
	return err
}

// attachRows orders each file's rows by their position in the export.
func attachRows(r Report) rowsReport {
	out := rowsReport{Archive: r.Archive, Processed: r.Processed, Failed: r.Failed}
	for _, f := range r.Files {
		fw := fileWithRows{FileReport: f}
		if f.data != nil {
			rows := make([]domain.ExtractedDataRow, 0, len(f.data.Rows))
			for _, row := range f.data.Rows {
				rows = append(rows, row)
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i].Row < rows[j].Row })
			for _, row := range rows {
				fw.Data = append(fw.Data, row.Data)
			}
		}
		out.Files = append(out.Files, fw)
	}
	return out
}

func writeTemplates(w io.Writer, format string, infos []tables.Info) error {
	switch format {
	case "json":
		return writeJSON(w, infos)
	case "yaml":
		return writeYAML(w, infos)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tKEY\tTITLE\tFIELDS")
	for _, info := range infos {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", info.Priority, info.Key, info.Title, strings.Join(info.Fields, ", "))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
