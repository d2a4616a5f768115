// Package tables recognizes tab-delimited text exports and extracts their rows.
//
// An export is laid out as:
//
//	line 1   title, e.g. "BEAM LISTING"
//	line 2   tab-separated header row
//	line 3+  tab-separated data rows
//
// No quoting or escaping is supported. Layouts are registered as Template
// strategies in an ordered Registry; the first template whose Recognize
// accepts the document extracts it. Register new export formats from an
// init function in a subpackage (see tables/templates) rather than editing
// the registry.
//
// Matching is driven by small named scoring functions in matching.go so the
// tolerances can be tested on their own.
package tables
