package ws

import (
	"sync"
	"sync/atomic"
)

const defaultShards = 32

type sessionSet map[*Session]struct{}

type shard struct {
	mu    sync.RWMutex
	users map[int]sessionSet
	rooms map[int]sessionSet
}

// Registry indexes live sessions by user and by subscribed room. Both indexes
// are split across shards, each behind its own lock.
type Registry struct {
	shards []*shard
	mask   uint
	count  atomic.Int64
}

// NewRegistry rounds shards up to a power of two.
func NewRegistry(shards int) *Registry {
	if shards <= 0 {
		shards = defaultShards
	}
	n := 1
	for n < shards {
		n <<= 1
	}
	r := &Registry{shards: make([]*shard, n), mask: uint(n - 1)}
	for i := range r.shards {
		r.shards[i] = &shard{users: make(map[int]sessionSet), rooms: make(map[int]sessionSet)}
	}
	return r
}

func (r *Registry) shardFor(id int) *shard {
	return r.shards[uint(id)&r.mask]
}

// Register indexes s under its user. Registering twice is a no-op.
func (r *Registry) Register(s *Session) {
	if s == nil || s.UserID == 0 || s.Closed() {
		return
	}
	sh := r.shardFor(s.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	set, ok := sh.users[s.UserID]
	if !ok {
		set = make(sessionSet)
		sh.users[s.UserID] = set
	}
	if _, exists := set[s]; exists {
		return
	}
	set[s] = struct{}{}
	r.count.Add(1)
}

// Unregister closes s and removes it from every index. Sessions that were
// never registered or never identified are tolerated.
func (r *Registry) Unregister(s *Session) {
	if s == nil {
		return
	}
	s.Close()

	for _, roomID := range s.roomIDs() {
		r.removeFromRoom(s, roomID)
	}
	if s.UserID == 0 {
		return
	}
	sh := r.shardFor(s.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	set, ok := sh.users[s.UserID]
	if !ok {
		return
	}
	if _, exists := set[s]; !exists {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(sh.users, s.UserID)
	}
	r.count.Add(-1)
}

// IsReachable is advisory: the answer may be stale by the time it is used.
func (r *Registry) IsReachable(userID int) bool {
	sh := r.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.users[userID]) > 0
}

func (r *Registry) SessionsFor(userID int) []*Session {
	sh := r.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return collect(sh.users[userID])
}

func (r *Registry) RoomSessions(roomID int) []*Session {
	sh := r.shardFor(roomID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return collect(sh.rooms[roomID])
}

// All returns every live session.
func (r *Registry) All() []*Session {
	var out []*Session
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, set := range sh.users {
			for s := range set {
				out = append(out, s)
			}
		}
		sh.mu.RUnlock()
	}
	return out
}

// Subscribe adds s to the room channel. Closed sessions are ignored.
func (r *Registry) Subscribe(s *Session, roomID int) bool {
	sh := r.shardFor(roomID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if !s.addRoomIfOpen(roomID) {
		return false
	}
	set, ok := sh.rooms[roomID]
	if !ok {
		set = make(sessionSet)
		sh.rooms[roomID] = set
	}
	set[s] = struct{}{}
	return true
}

func (r *Registry) Unsubscribe(s *Session, roomID int) {
	s.removeRoom(roomID)
	r.removeFromRoom(s, roomID)
}

// SubscribeUser subscribes every live session of userID.
func (r *Registry) SubscribeUser(userID, roomID int) {
	for _, s := range r.SessionsFor(userID) {
		r.Subscribe(s, roomID)
	}
}

func (r *Registry) UnsubscribeUser(userID, roomID int) {
	for _, s := range r.SessionsFor(userID) {
		r.Unsubscribe(s, roomID)
	}
}

// DropRoom removes the room channel and all of its subscriptions.
func (r *Registry) DropRoom(roomID int) {
	sh := r.shardFor(roomID)
	sh.mu.Lock()
	set := sh.rooms[roomID]
	delete(sh.rooms, roomID)
	sh.mu.Unlock()
	for s := range set {
		s.removeRoom(roomID)
	}
}

func (r *Registry) Count() int {
	return int(r.count.Load())
}

func (r *Registry) removeFromRoom(s *Session, roomID int) {
	sh := r.shardFor(roomID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	set, ok := sh.rooms[roomID]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(sh.rooms, roomID)
	}
}

func collect(set sessionSet) []*Session {
	out := make([]*Session, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}
