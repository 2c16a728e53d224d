package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/danmuck/tlvhello/internal/client"
	"github.com/danmuck/tlvhello/internal/protocol"
	"github.com/danmuck/tlvhello/internal/protocol/session"
)

func TestRunUsage(t *testing.T) {
	for _, args := range [][]string{nil, {"1.2.3.4", "extra"}} {
		var stdout, stderr bytes.Buffer
		if code := run(context.Background(), args, &stdout, &stderr); code != 2 {
			t.Fatalf("args=%v: expected exit 2, got %d", args, code)
		}
		if !strings.Contains(stderr.String(), "usage: tlvclient") {
			t.Fatalf("args=%v: expected usage, got %q", args, stderr.String())
		}
	}
}

func TestRunRejectsInvalidAddressBeforeDialing(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"not.an.ip"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "invalid ipv4 address") {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
}

func TestHandshakeReportsOutcome(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   int
		stdout string
		stderr string
	}{
		{name: "ok", err: nil, code: 0, stdout: "Server connected protocol v1."},
		{name: "type", err: &session.MismatchError{Field: session.FieldType, Expected: 0, Actual: 7}, code: 1, stderr: "expected 0, got 7"},
		{name: "version", err: &session.MismatchError{Field: session.FieldVersion, Expected: 1, Actual: 2}, code: 1, stderr: "Protocol version mismatch"},
		{name: "truncated", err: fmt.Errorf("read: %w", protocol.ErrTruncated), code: 1, stderr: "full frame"},
		{name: "connect", err: fmt.Errorf("%w: refused", client.ErrConnect), code: 1, stderr: "connect:"},
	}
	for _, tc := range cases {
		var stdout, stderr bytes.Buffer
		code := handshake(context.Background(), "127.0.0.1:5555", func() error { return tc.err }, &stdout, &stderr)
		if code != tc.code {
			t.Fatalf("%s: expected exit %d, got %d", tc.name, tc.code, code)
		}
		if tc.stdout != "" && !strings.Contains(stdout.String(), tc.stdout) {
			t.Fatalf("%s: stdout %q missing %q", tc.name, stdout.String(), tc.stdout)
		}
		if tc.stderr != "" && !strings.Contains(stderr.String(), tc.stderr) {
			t.Fatalf("%s: stderr %q missing %q", tc.name, stderr.String(), tc.stderr)
		}
	}
}
