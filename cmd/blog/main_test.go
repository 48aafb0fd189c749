package main

import (
	"strings"
	"testing"
)

func TestReadPipedPassword(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"spaces kept", "correct horse battery\n", "correct horse battery", false},
		{"crlf", "hunter22\r\n", "hunter22", false},
		{"no trailing newline", "hunter22", "hunter22", false},
		{"too short", "abc\n", "", true},
		{"blank", "      \n", "", true},
		{"empty input", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readPipedPassword(strings.NewReader(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Errorf("readPipedPassword(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("readPipedPassword(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("readPipedPassword(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConfigFlagDefault(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config")
	if flag == nil {
		t.Fatal("--config flag not registered")
	}
	if flag.DefValue != "blog.toml" {
		t.Errorf("--config default = %q, want blog.toml", flag.DefValue)
	}
}
