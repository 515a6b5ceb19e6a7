// Package fetch retrieves pages and classifies the outcome.
//
// Every fetch ends in one of four states: ONLINE (HTTP 200), ERROR (any
// other status or an unexpected failure), TIMEOUT and OFFLINE (no
// connection). Only invalid URLs and an unreachable Tor proxy are
// reported as errors; everything else is data in the Result.
//
// Hosts under .onion are routed through the Tor client. Other hosts use
// a direct client unless every request is configured to go through Tor.
package fetch
