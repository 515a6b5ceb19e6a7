// Package forensics downloads files linked from scanned pages and runs
// external analyzers over them.
//
// Four sub-analyses produce one model.FileReport per file:
//
//	metadata    exiftool -json (go-exif when exiftool is missing)
//	strings     strings -n 8
//	signatures  binwalk -B
//	malware     clamscan --no-summary
//
// Every sub-analysis runs under its own wall-clock timeout and reports a
// status instead of an error. A missing or crashing tool never aborts the
// remaining analyses or the scan that requested them.
package forensics
