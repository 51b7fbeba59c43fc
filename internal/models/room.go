package models

import (
	"fmt"
	"sort"
	"time"
)

// RoomType distinguishes direct chats from group rooms and broadcast channels.
type RoomType string

const (
	RoomTypePrivate RoomType = "PRIVATE"
	RoomTypeGroup   RoomType = "GROUP"
	RoomTypeChannel RoomType = "CHANNEL"
)

// PrivateRoomName is the name given to implicit 1:1 rooms.
const PrivateRoomName = "Private Chat"

// Room is the membership aggregate. CurrentMemberCount always equals len(Members).
type Room struct {
	ID                 int        `db:"id" json:"id"`
	Name               string     `db:"name" json:"name"`
	Description        string     `db:"description" json:"description,omitempty"`
	AvatarURL          string     `db:"avatar_url" json:"avatar_url,omitempty"`
	RoomType           RoomType   `db:"room_type" json:"room_type"`
	CreatedBy          int        `db:"created_by" json:"created_by"`
	IsPrivate          bool       `db:"is_private" json:"is_private"`
	MaxMembers         *int       `db:"max_members" json:"max_members,omitempty"`
	CurrentMemberCount int        `db:"current_member_count" json:"current_member_count"`
	LastMessageAt      *time.Time `db:"last_message_at" json:"last_message_at"`
	PrivateKey         *string    `db:"private_key" json:"-"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`

	Members []int `db:"-" json:"members"`
	Admins  []int `db:"-" json:"admins"`
}

// NewRoom builds a room whose creator is its only member and admin.
func NewRoom(name string, roomType RoomType, creatorID int) *Room {
	r := &Room{
		Name:      name,
		RoomType:  roomType,
		CreatedBy: creatorID,
	}
	r.AddMember(creatorID)
	r.AddAdmin(creatorID)
	return r
}

// NewPrivateRoom builds the PRIVATE room for the pair a, b.
func NewPrivateRoom(a, b int) *Room {
	r := NewRoom(PrivateRoomName, RoomTypePrivate, a)
	r.IsPrivate = true
	r.AddMember(b)
	key := PrivatePairKey(a, b)
	r.PrivateKey = &key
	return r
}

// PrivatePairKey is the order-independent key of a user pair.
func PrivatePairKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

func (r *Room) IsMember(userID int) bool {
	return containsID(r.Members, userID)
}

func (r *Room) IsAdmin(userID int) bool {
	return containsID(r.Admins, userID)
}

func (r *Room) IsCreator(userID int) bool {
	return r.CreatedBy == userID
}

// IsFull reports whether another member would exceed MaxMembers.
func (r *Room) IsFull() bool {
	return r.MaxMembers != nil && len(r.Members) >= *r.MaxMembers
}

// AddMember adds userID and returns false if it was already a member.
func (r *Room) AddMember(userID int) bool {
	var added bool
	r.Members, added = insertID(r.Members, userID)
	r.CurrentMemberCount = len(r.Members)
	return added
}

// RemoveMember removes userID from members and admins.
func (r *Room) RemoveMember(userID int) bool {
	var removed bool
	r.Members, removed = removeID(r.Members, userID)
	r.Admins, _ = removeID(r.Admins, userID)
	r.CurrentMemberCount = len(r.Members)
	return removed
}

// AddAdmin promotes userID; admins must already be members.
func (r *Room) AddAdmin(userID int) bool {
	if !r.IsMember(userID) {
		return false
	}
	var added bool
	r.Admins, added = insertID(r.Admins, userID)
	return added
}

// SetMembers replaces both sets as loaded from storage and recounts.
func (r *Room) SetMembers(members, admins []int) {
	r.Members = nil
	for _, id := range members {
		r.Members, _ = insertID(r.Members, id)
	}
	r.Admins = nil
	for _, id := range admins {
		if r.IsMember(id) {
			r.Admins, _ = insertID(r.Admins, id)
		}
	}
	r.CurrentMemberCount = len(r.Members)
}

// Clone returns a deep copy.
func (r *Room) Clone() *Room {
	c := *r
	c.Members = append([]int(nil), r.Members...)
	c.Admins = append([]int(nil), r.Admins...)
	if r.MaxMembers != nil {
		v := *r.MaxMembers
		c.MaxMembers = &v
	}
	if r.LastMessageAt != nil {
		v := *r.LastMessageAt
		c.LastMessageAt = &v
	}
	if r.PrivateKey != nil {
		v := *r.PrivateKey
		c.PrivateKey = &v
	}
	return &c
}

// NewRoomSpec is the input of room creation.
type NewRoomSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	AvatarURL   string   `json:"avatar_url"`
	RoomType    RoomType `json:"room_type"`
	MemberIDs   []int    `json:"member_ids"`
	IsPrivate   bool     `json:"is_private"`
	MaxMembers  *int     `json:"max_members"`
}

// RoomPatch holds the admin-editable room fields; nil means unchanged.
type RoomPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	AvatarURL   *string `json:"avatar_url"`
	MaxMembers  *int    `json:"max_members"`
}

// RoomView is a room as seen by one user.
type RoomView struct {
	Room
	IsMember           bool `json:"is_member"`
	IsAdmin            bool `json:"is_admin"`
	IsCreator          bool `json:"is_creator"`
	UnreadMessageCount int  `json:"unread_message_count"`
}

// ViewFor derives the caller flags of r for userID.
func (r *Room) ViewFor(userID int) RoomView {
	return RoomView{
		Room:      *r,
		IsMember:  r.IsMember(userID),
		IsAdmin:   r.IsAdmin(userID),
		IsCreator: r.IsCreator(userID),
	}
}

func containsID(ids []int, id int) bool {
	i := sort.SearchInts(ids, id)
	return i < len(ids) && ids[i] == id
}

func insertID(ids []int, id int) ([]int, bool) {
	i := sort.SearchInts(ids, id)
	if i < len(ids) && ids[i] == id {
		return ids, false
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids, true
}

func removeID(ids []int, id int) ([]int, bool) {
	i := sort.SearchInts(ids, id)
	if i >= len(ids) || ids[i] != id {
		return ids, false
	}
	return append(ids[:i], ids[i+1:]...), true
}
