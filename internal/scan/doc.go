// Package scan implements the scan orchestrator.
//
// A scan is a Pipeline of Steps run over a per-scan Run:
//
//	fetch -> parse -> file_forensics -> content_analysis -> persist -> diff -> correlate -> alert
//
// When the fetch yields no usable content, parse, forensics and analysis
// leave the Run without a page and persist records a placeholder
// document. Only invalid input, an unusable Tor proxy and an unreachable
// store abort a scan; every other failure is logged and reflected in the
// document.
//
// The package also serves the read side used by the API and CLI:
// Summarize, Compare, History, Alerts and Acknowledge.
package scan
