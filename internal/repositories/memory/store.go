// Package memory keeps rooms, messages and users in process memory. It backs
// STORE_DRIVER=memory and the service tests, and mirrors the Postgres
// constraints: unique public room names, one private room per pair, and
// messages removed together with their room.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"chat-core/internal/apperr"
	"chat-core/internal/models"
)

// Store implements the message, room and user repositories.
type Store struct {
	mu       sync.RWMutex
	users    map[int]models.User
	rooms    map[int]*models.Room
	messages map[int]models.Message
	lastRoom int
	lastMsg  int

	lockMu    sync.Mutex
	roomLocks map[int]*sync.Mutex

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:     make(map[int]models.User),
		rooms:     make(map[int]*models.Room),
		messages:  make(map[int]models.Message),
		roomLocks: make(map[int]*sync.Mutex),
		now:       time.Now,
	}
}

// SetClock replaces the time source used for created and updated stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) roomLock(roomID int) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.roomLocks[roomID]
	if !ok {
		l = &sync.Mutex{}
		s.roomLocks[roomID] = l
	}
	return l
}

// Users

func (s *Store) GetUser(_ context.Context, userID int) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return models.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}

func (s *Store) MissingUsers(_ context.Context, userIDs []int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var missing []int
	seen := make(map[int]bool, len(userIDs))
	for _, id := range userIDs {
		if _, ok := s.users[id]; !ok && !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	sort.Ints(missing)
	return missing, nil
}

// UpsertUser creates or refreshes a profile. Empty display fields keep the
// stored values.
func (s *Store) UpsertUser(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[user.ID]; ok {
		if user.Username == "" {
			user.Username = existing.Username
		}
		if user.AvatarURL == "" {
			user.AvatarURL = existing.AvatarURL
		}
	}
	s.users[user.ID] = user
	return nil
}

// Rooms

func (s *Store) CreateRoom(_ context.Context, room models.Room) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUniqueLocked(&room, 0); err != nil {
		return models.Room{}, err
	}
	s.lastRoom++
	now := s.now()
	stored := room.Clone()
	stored.ID = s.lastRoom
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.CurrentMemberCount = len(stored.Members)
	s.rooms[stored.ID] = stored
	return *stored.Clone(), nil
}

func (s *Store) checkUniqueLocked(room *models.Room, selfID int) error {
	for id, other := range s.rooms {
		if id == selfID {
			continue
		}
		if room.PrivateKey != nil && other.PrivateKey != nil && *room.PrivateKey == *other.PrivateKey {
			return apperr.Conflict("private room already exists")
		}
		if room.RoomType != models.RoomTypePrivate && other.RoomType != models.RoomTypePrivate && room.Name == other.Name {
			return apperr.Conflict("room name already taken")
		}
	}
	return nil
}

func (s *Store) GetRoom(_ context.Context, roomID int) (models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return models.Room{}, apperr.NotFound("room not found")
	}
	return *room.Clone(), nil
}

func (s *Store) FindPrivateRoom(_ context.Context, a, b int) (models.Room, error) {
	key := models.PrivatePairKey(a, b)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, room := range s.rooms {
		if room.PrivateKey != nil && *room.PrivateKey == key {
			return *room.Clone(), nil
		}
	}
	return models.Room{}, apperr.NotFound("private room not found")
}

// MutateRoom serializes writers per room; fn runs on a copy outside the store lock.
func (s *Store) MutateRoom(ctx context.Context, roomID int, fn func(*models.Room) error) (models.Room, error) {
	l := s.roomLock(roomID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return models.Room{}, err
	}
	current, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	if err := fn(&current); err != nil {
		return models.Room{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.rooms[roomID]
	if !ok {
		return models.Room{}, apperr.NotFound("room not found")
	}
	if err := s.checkUniqueLocked(&current, roomID); err != nil {
		return models.Room{}, err
	}
	updated := current.Clone()
	updated.ID = roomID
	updated.CreatedBy = stored.CreatedBy
	updated.RoomType = stored.RoomType
	updated.PrivateKey = stored.PrivateKey
	updated.CreatedAt = stored.CreatedAt
	// last_message_at is owned by TouchLastMessage, which does not take the room lock.
	updated.LastMessageAt = stored.LastMessageAt
	updated.UpdatedAt = s.now()
	updated.CurrentMemberCount = len(updated.Members)
	s.rooms[roomID] = updated
	return *updated.Clone(), nil
}

func (s *Store) DeleteRoom(_ context.Context, roomID int) error {
	s.mu.Lock()
	if _, ok := s.rooms[roomID]; !ok {
		s.mu.Unlock()
		return apperr.NotFound("room not found")
	}
	delete(s.rooms, roomID)
	for id, msg := range s.messages {
		if msg.RoomID != nil && *msg.RoomID == roomID {
			delete(s.messages, id)
		}
	}
	s.mu.Unlock()

	// Room ids are never reused, so a writer still holding the old lock only
	// finds the room gone.
	s.lockMu.Lock()
	delete(s.roomLocks, roomID)
	s.lockMu.Unlock()
	return nil
}

func (s *Store) TouchLastMessage(_ context.Context, roomID int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return false, nil
	}
	t := at
	room.LastMessageAt = &t
	room.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) IsMember(_ context.Context, roomID, userID int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return ok && room.IsMember(userID), nil
}

func (s *Store) ListRoomsForUser(_ context.Context, userID int, p models.Page) (models.PageResult[models.Room], error) {
	rooms := s.filterRooms(func(r *models.Room) bool { return r.IsMember(userID) })
	sort.Slice(rooms, func(i, j int) bool {
		a, b := rooms[i], rooms[j]
		switch {
		case a.LastMessageAt != nil && b.LastMessageAt == nil:
			return true
		case a.LastMessageAt == nil && b.LastMessageAt != nil:
			return false
		case a.LastMessageAt != nil && !a.LastMessageAt.Equal(*b.LastMessageAt):
			return a.LastMessageAt.After(*b.LastMessageAt)
		case !a.UpdatedAt.Equal(b.UpdatedAt):
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID > b.ID
	})
	return models.Slice(rooms, p), nil
}

func (s *Store) SearchPublicRooms(_ context.Context, term string, p models.Page) (models.PageResult[models.Room], error) {
	term = strings.ToLower(term)
	rooms := s.filterRooms(func(r *models.Room) bool {
		return !r.IsPrivate && r.RoomType != models.RoomTypePrivate && strings.Contains(strings.ToLower(r.Name), term)
	})
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name != rooms[j].Name {
			return rooms[i].Name < rooms[j].Name
		}
		return rooms[i].ID < rooms[j].ID
	})
	return models.Slice(rooms, p), nil
}

func (s *Store) ListJoinableRooms(_ context.Context, userID int, p models.Page) (models.PageResult[models.Room], error) {
	rooms := s.filterRooms(func(r *models.Room) bool {
		return r.RoomType == models.RoomTypeGroup && !r.IsPrivate && !r.IsFull() && !r.IsMember(userID)
	})
	sort.Slice(rooms, func(i, j int) bool {
		a, b := rooms[i], rooms[j]
		if a.CurrentMemberCount != b.CurrentMemberCount {
			return a.CurrentMemberCount > b.CurrentMemberCount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return models.Slice(rooms, p), nil
}

func (s *Store) RoomIDsForUser(_ context.Context, userID int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := []int{}
	for id, room := range s.rooms {
		if room.IsMember(userID) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *Store) filterRooms(keep func(*models.Room) bool) []models.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Room
	for _, room := range s.rooms {
		if keep(room) {
			out = append(out, *room.Clone())
		}
	}
	return out
}
