// Package report provides the result sinks.
//
// This package contains writers for different output formats:
//   - JSONLWriter: one JSON object per line, for tool integration
//   - LogWriter: human-readable multi-line entries for terminal display
//   - CSVWriter: comma-separated rows with a header
//   - MarkdownWriter: a summary document written when the scan ends
//
// Writers implement the Writer interface and stream: Write is called as each
// result arrives and Close flushes at the end. MultiWriter fans one result
// out to several writers, which is how the SQLite export in the database
// package rides along with the chosen format.
package report
