//go:build unix

package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunRejectsArguments(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"127.0.0.1"}, &stderr); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "usage: tlvserver") {
		t.Fatalf("expected usage text, got %q", stderr.String())
	}
}

func TestRunFailsOnBadConfigFile(t *testing.T) {
	t.Setenv("TLVHELLO_SERVER_CONFIG", "/nonexistent/tlvserver.toml")
	var stderr bytes.Buffer
	if code := run(nil, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}
