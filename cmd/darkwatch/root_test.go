package main

import (
	"testing"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "darkwatch" {
			t.Errorf("expected use 'darkwatch', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions and version", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty descriptions")
		}
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has persistent flags", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name      string
			shorthand string
			def       string
		}{
			{"verbose", "v", "false"},
			{"config", "c", ""},
			{"external-tor", "e", ""},
			{"db-driver", "", ""},
		}
		for _, tt := range tests {
			flag := cmd.PersistentFlags().Lookup(tt.name)
			if flag == nil {
				t.Errorf("expected %s flag", tt.name)
				continue
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("%s: expected shorthand %q, got %q", tt.name, tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.def {
				t.Errorf("%s: expected default %q, got %q", tt.name, tt.def, flag.DefValue)
			}
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		names := make(map[string]bool)
		for _, sub := range cmd.Commands() {
			names[sub.Name()] = true
		}
		for _, want := range []string{"scan", "serve", "monitor", "alerts", "history", "compare", "init", "version"} {
			if !names[want] {
				t.Errorf("expected %s subcommand", want)
			}
		}
	})

	t.Run("monitor has subcommands", func(t *testing.T) {
		t.Parallel()
		mon, _, err := cmd.Find([]string{"monitor"})
		if err != nil {
			t.Fatal(err)
		}
		names := make(map[string]bool)
		for _, sub := range mon.Commands() {
			names[sub.Name()] = true
		}
		for _, want := range []string{"add", "list", "pause", "resume", "rm"} {
			if !names[want] {
				t.Errorf("expected monitor %s subcommand", want)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage {
			t.Error("expected SilenceUsage to be true")
		}
		if !cmd.SilenceErrors {
			t.Error("expected SilenceErrors to be true")
		}
	})
}
