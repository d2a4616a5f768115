package templates

import "github.com/JonMunkholm/detailing/internal/tables"

// The truss schedule is exported by several tool versions whose titles and
// header prefixes differ slightly, so it is matched fuzzily.
func init() {
	tables.Register(&tables.Layout{
		Key:      "truss",
		Name:     "Truss List",
		Priority: trussPriority,
		Title:    "CW JOIST SCHEDULE",
		Columns: []string{
			"ID", "No", "Truss Length", "Type", "Left End Cap", "Right End Cap",
			"NEC", "STD", "Has Peno", "Cut Webs", "Truss Grouping Pack",
		},
		MatchTitle:   tables.FuzzyTitle,
		MatchColumns: tables.FuzzyColumns,
		Fields: []tables.Field{
			{Name: "id", Aliases: []string{"id"}},
			{Name: "qty", Aliases: []string{"no", "qty"}},
			{Name: "len", Aliases: []string{"truss length"}},
			{Name: "type", Aliases: []string{"type"}},
			{Name: "leftEndCap", Aliases: []string{"left end cap"}},
			{Name: "rightEndCap", Aliases: []string{"right end cap"}},
			{Name: "notchedEndCap", Aliases: []string{"nec"}},
			{Name: "standardEndCap", Aliases: []string{"std"}},
			{Name: "hasPenetration", Aliases: []string{"has peno", "p.has peno"}},
			{Name: "penetrationPosition", Aliases: []string{"cut webs", "p.cut webs"}},
			{Name: "trussGroup", Aliases: []string{"truss grouping pack", "truss group"}},
		},
	})
}
