package channel

import (
	"context"
	"testing"
	"time"

	"github.com/urbanespionage/client/internal/wire"
)

// helper: receive one frame with a timeout so tests never hang
func recvFrame(t *testing.T, ch <-chan wire.Frame, within time.Duration) wire.Frame {
	t.Helper()
	select {
	case f, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return f
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return wire.Frame{} // unreachable
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func TestChannel_BroadcastReachesAllSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(ctx)

	out1 := make(chan wire.Frame, 2)
	out2 := make(chan wire.Frame, 2)
	c.Inbox() <- Subscribe{ClientID: "c1", Outbox: out1}
	c.Inbox() <- Subscribe{ClientID: "c2", Outbox: out2}

	c.Inbox() <- Publish{Frame: wire.Frame{Type: wire.TypePlayerLeft, PlayerID: "p1"}}

	for _, out := range []chan wire.Frame{out1, out2} {
		f := recvFrame(t, out, 100*time.Millisecond)
		if f.Type != wire.TypePlayerLeft || f.PlayerID != "p1" {
			t.Fatalf("unexpected frame: %+v", f)
		}
	}
}

func TestChannel_DropsSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(ctx)

	out := make(chan wire.Frame, 1)
	c.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}

	// First publish fills the buffer, second finds it full.
	c.Inbox() <- Publish{Frame: wire.Frame{Type: wire.TypePlayerOnline, PlayerID: "p1"}}
	c.Inbox() <- Publish{Frame: wire.Frame{Type: wire.TypePlayerOffline, PlayerID: "p1"}}

	reply := make(chan View, 1)
	c.Inbox() <- GetView{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)

	if view.NumClients != 0 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", view.NumClients)
	}
}

func TestChannel_UnsubscribeStopsDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(ctx)

	out := make(chan wire.Frame, 2)
	c.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}
	c.Inbox() <- Unsubscribe{ClientID: "c1"}
	c.Inbox() <- Publish{Frame: wire.Frame{Type: wire.TypePlayerOnline, PlayerID: "p1"}}

	// The outbox is closed on unsubscribe; nothing may be delivered first.
	select {
	case f, ok := <-out:
		if ok {
			t.Fatalf("expected no frame after unsubscribe, got: %+v", f)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("expected outbox to be closed after unsubscribe")
	}
}
