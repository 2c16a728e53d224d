package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/tlvhello/internal/client"
	"github.com/danmuck/tlvhello/internal/logging"
	"github.com/danmuck/tlvhello/internal/protocol"
	"github.com/danmuck/tlvhello/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "usage: tlvclient <ip of the host>")
		return 2
	}
	logging.ConfigureRuntime("tlvclient")

	addr, err := client.ResolveServer(args[0], client.DefaultPort)
	if err != nil {
		fmt.Fprintf(stderr, "tlvclient: %v\n", err)
		return 2
	}
	return handshake(ctx, addr.String(), func() error {
		_, err := client.Handshake(ctx, addr, session.DefaultConfig())
		return err
	}, stdout, stderr)
}

// handshake reports the outcome of fn the way operators read it.
func handshake(ctx context.Context, target string, fn func() error, stdout, stderr io.Writer) int {
	log.Info().Str("server", target).Msg("connecting")
	err := fn()
	switch {
	case err == nil:
		fmt.Fprintln(stdout, "Server connected protocol v1.")
		return 0
	case errors.Is(err, protocol.ErrTypeMismatch):
		fmt.Fprintf(stderr, "Protocol mismatch, failing: %v\n", err)
	case errors.Is(err, protocol.ErrVersionMismatch):
		fmt.Fprintf(stderr, "Protocol version mismatch, failing: %v\n", err)
	case errors.Is(err, protocol.ErrTruncated):
		fmt.Fprintf(stderr, "Server closed before a full frame: %v\n", err)
	case errors.Is(err, client.ErrConnect):
		fmt.Fprintf(stderr, "connect: %v\n", err)
	default:
		fmt.Fprintf(stderr, "tlvclient: %v\n", err)
	}
	if ctx.Err() != nil {
		log.Warn().Err(ctx.Err()).Msg("handshake cancelled")
	}
	return 1
}
