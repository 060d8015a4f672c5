// Package hub keeps the registry of live game channels, keyed by join code.
package hub

import (
	"context"

	"github.com/urbanespionage/client/internal/backend/channel"
)

type HubMsg interface{ isHubMsg() }

type GetChannel struct {
	Code  string
	Reply chan *channel.Channel
}

type EnsureChannel struct {
	Code  string
	Reply chan *channel.Channel
}

type RemoveChannel struct {
	Code string
}

type ShutdownHub struct{}

func (GetChannel) isHubMsg()    {}
func (EnsureChannel) isHubMsg() {}
func (RemoveChannel) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

type Hub struct {
	inbox    chan HubMsg
	channels map[string]*channel.Channel
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		channels: make(map[string]*channel.Channel),
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Ensure is a convenience wrapper around EnsureChannel.
func (h *Hub) Ensure(code string) *channel.Channel {
	reply := make(chan *channel.Channel, 1)
	h.inbox <- EnsureChannel{Code: code, Reply: reply}
	return <-reply
}

// Get returns the live channel for a code, or nil.
func (h *Hub) Get(code string) *channel.Channel {
	reply := make(chan *channel.Channel, 1)
	h.inbox <- GetChannel{Code: code, Reply: reply}
	return <-reply
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case GetChannel:
				msg.Reply <- h.channels[msg.Code] // May be nil

			case EnsureChannel:
				if ch := h.channels[msg.Code]; ch != nil {
					msg.Reply <- ch
					break
				}
				ch := channel.New(h.ctx)
				h.channels[msg.Code] = ch
				msg.Reply <- ch

			case RemoveChannel:
				if ch := h.channels[msg.Code]; ch != nil {
					ch.Inbox() <- channel.Shutdown{}
					delete(h.channels, msg.Code)
				}

			case ShutdownHub:
				for _, ch := range h.channels {
					ch.Inbox() <- channel.Shutdown{}
				}
				clear(h.channels)
				h.cancel()
			}
		}
	}
}
