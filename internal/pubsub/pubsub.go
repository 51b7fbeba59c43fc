// Package pubsub carries delivery envelopes between chat-core instances.
// Every instance dispatches every envelope to its own local sessions.
package pubsub

import (
	"context"
	"encoding/json"
	"sync"
)

// TargetKind selects which local sessions an envelope is for.
type TargetKind string

const (
	TargetUser   TargetKind = "user"
	TargetRoom   TargetKind = "room"
	TargetPublic TargetKind = "public"
)

// Target addresses a user, a room channel or every session. ID is unused for public.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   int        `json:"id,omitempty"`
}

func UserTarget(userID int) Target { return Target{Kind: TargetUser, ID: userID} }
func RoomTarget(roomID int) Target { return Target{Kind: TargetRoom, ID: roomID} }
func PublicTarget() Target         { return Target{Kind: TargetPublic} }

// EnvelopeKind distinguishes pushes from subscription control messages.
type EnvelopeKind string

const (
	KindEvent       EnvelopeKind = "event"
	KindSubscribe   EnvelopeKind = "subscribe"
	KindUnsubscribe EnvelopeKind = "unsubscribe"
	KindDropRoom    EnvelopeKind = "drop_room"
)

// Envelope is the unit published on a Bus. Payload is the encoded frame for
// events; UserIDs lists the affected users for subscribe and unsubscribe.
type Envelope struct {
	Kind    EnvelopeKind    `json:"kind"`
	Target  Target          `json:"target"`
	UserIDs []int           `json:"user_ids,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handler consumes envelopes on the local instance.
type Handler func(Envelope)

// Bus fans envelopes out to the handlers of every instance.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	Handle(h Handler)
	// Run consumes envelopes until ctx is done.
	Run(ctx context.Context) error
	Close() error
}

type handlers struct {
	mu   sync.RWMutex
	list []Handler
}

func (h *handlers) add(fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.list = append(h.list, fn)
}

func (h *handlers) dispatch(env Envelope) {
	h.mu.RLock()
	list := h.list
	h.mu.RUnlock()
	for _, fn := range list {
		fn(env)
	}
}

// LocalBus dispatches in-process, synchronously on Publish.
type LocalBus struct {
	handlers handlers
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.handlers.dispatch(env)
	return nil
}

func (b *LocalBus) Handle(h Handler) {
	b.handlers.add(h)
}

func (b *LocalBus) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (b *LocalBus) Close() error {
	return nil
}
