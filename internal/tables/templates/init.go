// Package templates registers the known export layouts with the tables registry.
// Import this package for its side effects to make them available.
package templates

// Probe order, lowest first.
const (
	beamPriority  = 10
	trussPriority = 20
	sheetPriority = 30
)
