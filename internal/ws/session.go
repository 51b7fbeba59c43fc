package ws

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSlowConsumer  = errors.New("send buffer full")
)

// Session is one live connection of an authenticated user. Frames queued
// with Send are written by the connection's write pump.
type Session struct {
	ID     string
	UserID int
	Info   ConnInfo

	send chan []byte

	mu       sync.Mutex
	closed   bool
	joined   bool
	username string
	rooms    map[int]struct{}
}

func NewSession(userID int, info ConnInfo, buffer int) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	id := info.ConnID
	if id == "" {
		id = uuid.NewString()
		info.ConnID = id
	}
	return &Session{
		ID:     id,
		UserID: userID,
		Info:   info,
		send:   make(chan []byte, buffer),
		rooms:  make(map[int]struct{}),
	}
}

// Send queues payload without blocking. A full buffer drops the frame.
func (s *Session) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.send <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Messages is drained by the write pump; it is closed with the session.
func (s *Session) Messages() <-chan []byte {
	return s.send
}

// Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MarkJoined completes the join handshake. It reports false if the session
// had already joined.
func (s *Session) MarkJoined(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joined {
		return false
	}
	s.joined = true
	if username != "" {
		s.username = username
	}
	return true
}

// Joined returns the handshake state and the username it recorded.
func (s *Session) Joined() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined, s.username
}

func (s *Session) SetUsername(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
}

func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

func (s *Session) addRoomIfOpen(roomID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.rooms[roomID] = struct{}{}
	return true
}

func (s *Session) removeRoom(roomID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

func (s *Session) roomIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	return ids
}

// InRoom reports whether the session is subscribed to roomID.
func (s *Session) InRoom(roomID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[roomID]
	return ok
}
