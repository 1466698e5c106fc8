package ghci

import (
	"os"
	"testing"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		want     string
		terminal bool
	}{
		{StateInitializing, "initializing", false},
		{StateReady, "ready", false},
		{StateEvaluating, "evaluating", false},
		{StateTimedOut, "timed_out", true},
		{StateClosed, "closed", true},
		{State(99), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if got := tt.state.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		env  string
		want string
	}{
		{"explicit path", "/opt/ghc/bin/ghci", "/env/ghci", "/opt/ghc/bin/ghci"},
		{"environment", "", "/env/ghci", "/env/ghci"},
		{"default", "", "", DefaultExecutable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvPath, tt.env)
			if got := ResolvePath(tt.path); got != tt.want {
				t.Errorf("ResolvePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zero value", Config{}, false},
		{"full", Config{Path: "ghci", Args: []string{"-ignore-dot-ghci"}, Dir: os.TempDir()}, false},
		{"blank path", Config{Path: "   "}, true},
		{"NUL in args", Config{Args: []string{"ok", "b\x00d"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
