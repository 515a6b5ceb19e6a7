// Package indicator extracts forensic indicators from page text.
//
// Dark web pages frequently hide contact details behind invisible
// characters or spacing tricks ("user @ domain . com"). The extractor
// therefore normalizes text before any pattern runs:
//
//   - Unicode NFKC composition
//   - removal of zero-width, bidi-control and format characters
//   - non-breaking spaces collapsed to ordinary spaces
//
// The normalized text is also the input of the content hash, which is the
// only signal used for change detection between scans of the same URL.
package indicator
