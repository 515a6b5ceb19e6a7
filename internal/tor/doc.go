// Package tor routes darkwatch traffic through the Tor network.
//
// A Client wraps a SOCKS5 dialer pointed at a Tor daemon and hands out
// HTTP clients that resolve and connect through it. The daemon is either
// an external one (usually 127.0.0.1:9050) or an EmbeddedTor started with
// tornago. IsOnionHost decides which requests need the proxy at all.
package tor
