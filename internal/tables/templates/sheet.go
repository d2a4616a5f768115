package templates

import "github.com/JonMunkholm/detailing/internal/tables"

func init() {
	tables.Register(&tables.Layout{
		Key:          "sheet",
		Name:         "Sheet List",
		Priority:     sheetPriority,
		Title:        "SHEET LISTING",
		Columns:      []string{"ID", "Qty", "Length"},
		MatchTitle:   tables.ExactTitle,
		MatchColumns: tables.ExactColumns,
		Fields: []tables.Field{
			{Name: "id", Aliases: []string{"id"}},
			{Name: "qty", Aliases: []string{"qty", "quantity"}},
			{Name: "len", Aliases: []string{"len", "length"}},
		},
	})
}
