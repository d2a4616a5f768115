package templates

import "github.com/JonMunkholm/detailing/internal/tables"

func init() {
	tables.Register(&tables.Layout{
		Key:          "beam",
		Name:         "Beam List",
		Priority:     beamPriority,
		Title:        "BEAM LISTING",
		Columns:      []string{"ID", "Qty", "Length", "Beam"},
		MatchTitle:   tables.ExactTitle,
		MatchColumns: tables.ExactColumns,
		Fields: []tables.Field{
			{Name: "id", Aliases: []string{"id"}},
			{Name: "qty", Aliases: []string{"qty", "quantity"}},
			{Name: "len", Aliases: []string{"len", "length"}},
			{Name: "name", Aliases: []string{"beam", "name", "size"}},
		},
	})
}
