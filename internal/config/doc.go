// Package config provides the darkwatch configuration: documented defaults,
// the .darkwatch.yaml loader, XDG directories, per-site request overrides
// and validation.
package config
