//go:build unix

package server

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/tlvhello/internal/observability"
	"github.com/danmuck/tlvhello/internal/testutil/testlog"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestWriteSomeReportsFullSendBuffer(t *testing.T) {
	testlog.Start(t)
	local, _ := socketPair(t)
	if err := prepareClientSocket(local); err != nil {
		t.Fatalf("nonblock: %v", err)
	}

	chunk := make([]byte, 64*1024)
	for i := 0; i < 1024; i++ {
		_, err := writeSome(local, chunk)
		if errors.Is(err, errWouldBlock) {
			return
		}
		if err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	t.Fatalf("send buffer never filled")
}

func TestExpireFailsStalledSend(t *testing.T) {
	testlog.Start(t)
	local, peer := socketPair(t)
	lfd, _ := socketPair(t)
	table, err := NewSlotTable(3, Slot{Handle: lfd})
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	// release closes the handle itself.
	stalled, err := unix.Dup(local)
	if err != nil {
		t.Fatalf("dup: %v", err)
	}
	now := time.Now()
	id, err := table.TryInsert(Slot{Handle: stalled, Interest: InterestHangup | InterestWrite})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	table.SetPending(id, []byte{0x00, 0x01}, now.Add(-time.Millisecond))
	waiting, err := table.TryInsert(Slot{Handle: peer, Due: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	srv := NewServer(testConfig())
	srv.table = table
	failedBefore := observability.SessionCount(observability.OutcomeFailed)
	srv.expire(now)

	if _, ok := table.Get(id); ok {
		t.Fatalf("stalled slot should be released")
	}
	if _, ok := table.Get(waiting); !ok {
		t.Fatalf("slot without a started send must stay")
	}
	if got := observability.SessionCount(observability.OutcomeFailed) - failedBefore; got != 1 {
		t.Fatalf("expected one failed session, got %v", got)
	}
}
