// Package sheet parses the comma-separated export of the FAQ spreadsheet and
// groups its rows by category.
//
// Parsing is line oriented: a quoted field may contain commas and doubled
// quotes but never a line break. Rows exported with multi-line cells are
// split at the break and usually dropped for having too few fields.
package sheet
