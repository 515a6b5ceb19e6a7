// Package report renders scan results, batch results and comparisons.
//
// Three writers implement Writer:
//   - SimpleWriter: plain text for terminals
//   - JSONWriter: structured output for tool integration
//   - MarkdownWriter: GitHub flavored Markdown with mermaid charts
//
// Writers take the presentation view from scan.Summarize so that the CLI
// and the HTTP API show the same numbers.
package report
