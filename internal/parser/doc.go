// Package parser turns fetched HTML into the pieces the scan pipeline
// analyses: a title, absolute links, downloadable file links, the most
// frequent keywords, and the full visible text.
//
// The visible text deliberately includes the content of pre, code and
// textarea blocks and the URLs of every link, because paste sites and
// contact pages often keep indicators there.
package parser
