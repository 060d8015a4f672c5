// Package channel implements the per-game realtime topic: every connected
// client subscribes with an outbox and receives each published frame.
package channel

import (
	"context"

	"github.com/urbanespionage/client/internal/wire"
)

type Msg interface{ isChannelMsg() }

type Subscribe struct {
	ClientID string
	Outbox   chan wire.Frame
}

func (Subscribe) isChannelMsg() {}

type Unsubscribe struct{ ClientID string }

func (Unsubscribe) isChannelMsg() {}

type Publish struct{ Frame wire.Frame }

func (Publish) isChannelMsg() {}

type Shutdown struct{}

func (Shutdown) isChannelMsg() {}

type GetView struct {
	Reply chan View
}

func (GetView) isChannelMsg() {}

// View reflects internal state without data races; used by tests and the
// presence bookkeeping.
type View struct {
	NumClients int
}

type Channel struct {
	inbox   chan Msg
	clients map[string]chan wire.Frame
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context) *Channel {
	ctx, cancel := context.WithCancel(parent)
	c := &Channel{
		inbox:   make(chan Msg, 64),
		clients: make(map[string]chan wire.Frame),
		ctx:     ctx,
		cancel:  cancel,
	}
	go c.loop()
	return c
}

func (c *Channel) Inbox() chan<- Msg { return c.inbox }

func (c *Channel) loop() {
	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case Subscribe:
				c.clients[msg.ClientID] = msg.Outbox

			case Unsubscribe:
				if ch, ok := c.clients[msg.ClientID]; ok {
					close(ch)
					delete(c.clients, msg.ClientID)
				}

			case Publish:
				c.broadcast(msg.Frame)

			case GetView:
				msg.Reply <- View{NumClients: len(c.clients)}

			case Shutdown:
				c.shutdown()
				return
			}
		}
	}
}

func (c *Channel) shutdown() {
	for id, ch := range c.clients {
		close(ch)
		delete(c.clients, id)
	}
	c.cancel()
}

func (c *Channel) broadcast(f wire.Frame) {
	for id, ch := range c.clients {
		select {
		case ch <- f:
			// ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(c.clients, id)
		}
	}
}
