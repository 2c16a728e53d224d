package server

import (
	"testing"
	"time"

	"github.com/danmuck/tlvhello/internal/observability"
	"github.com/danmuck/tlvhello/internal/testutil/testlog"
)

func TestServerReleasesSlotWhenPeerCloses(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig()
	cfg.Session.RespondDelay = 10 * time.Second
	srv, _, _ := startServer(t, cfg)

	conn := dial(t, srv)
	waitFor(t, "slot occupied", func() bool { return srv.Active() == 1 && len(srv.Slots()) == 2 })
	slots := srv.Slots()
	if len(slots) != 2 || slots[1].ID != 1 || slots[1].Session == "" || slots[1].Interest != "hangup" {
		t.Fatalf("unexpected slot view: %+v", slots)
	}

	sentBefore := observability.SessionCount(observability.OutcomeSent)
	hangupBefore := observability.SessionCount(observability.OutcomeHangup)
	_ = conn.Close()
	waitFor(t, "slot release after peer close", func() bool { return srv.Active() == 0 && len(srv.Slots()) == 1 })
	if got := observability.SessionCount(observability.OutcomeHangup) - hangupBefore; got != 1 {
		t.Fatalf("expected one hangup, got %v", got)
	}
	if got := observability.SessionCount(observability.OutcomeSent) - sentBefore; got != 0 {
		t.Fatalf("closed peer must not count as sent, got %v", got)
	}

	other := dial(t, srv)
	waitFor(t, "slot reuse", func() bool { return srv.Active() == 1 && len(srv.Slots()) == 2 })
	if got := srv.Slots(); len(got) != 2 || got[1].ID != 1 {
		t.Fatalf("expected first slot reused, got %+v", got)
	}
	_ = other.Close()
}
