// Package main provides the entry point for the darkwatch CLI.
//
// darkwatch scans dark-web and clearnet pages for threat indicators,
// correlates them across scans and monitors services over time.
//
// Usage:
//
//	darkwatch scan <url>...
//	darkwatch serve
//	darkwatch monitor add <url>
//
// See --help for all available options.
package main

// main is the entry point for darkwatch.
func main() {
	Execute()
}
