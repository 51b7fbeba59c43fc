package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomCreatorIsMemberAndAdmin(t *testing.T) {
	r := NewRoom("general", RoomTypeGroup, 7)

	assert.True(t, r.IsMember(7))
	assert.True(t, r.IsAdmin(7))
	assert.True(t, r.IsCreator(7))
	assert.Equal(t, 1, r.CurrentMemberCount)
}

func TestMemberCountFollowsMembers(t *testing.T) {
	r := NewRoom("general", RoomTypeGroup, 1)

	assert.True(t, r.AddMember(3))
	assert.True(t, r.AddMember(2))
	assert.False(t, r.AddMember(3))
	assert.Equal(t, []int{1, 2, 3}, r.Members)
	assert.Equal(t, 3, r.CurrentMemberCount)

	require.True(t, r.AddAdmin(2))
	assert.True(t, r.RemoveMember(2))
	assert.False(t, r.IsAdmin(2))
	assert.False(t, r.RemoveMember(2))
	assert.Equal(t, 2, r.CurrentMemberCount)
}

func TestAddAdminRequiresMembership(t *testing.T) {
	r := NewRoom("general", RoomTypeGroup, 1)

	assert.False(t, r.AddAdmin(9))
	assert.Equal(t, []int{1}, r.Admins)
}

func TestIsFull(t *testing.T) {
	r := NewRoom("general", RoomTypeGroup, 1)
	assert.False(t, r.IsFull())

	limit := 2
	r.MaxMembers = &limit
	assert.False(t, r.IsFull())
	r.AddMember(2)
	assert.True(t, r.IsFull())
}

func TestNewPrivateRoom(t *testing.T) {
	r := NewPrivateRoom(9, 4)

	assert.Equal(t, RoomTypePrivate, r.RoomType)
	assert.True(t, r.IsPrivate)
	assert.Equal(t, 2, r.CurrentMemberCount)
	require.NotNil(t, r.PrivateKey)
	assert.Equal(t, "4:9", *r.PrivateKey)
	assert.Equal(t, PrivatePairKey(4, 9), PrivatePairKey(9, 4))
}

func TestSetMembersDropsAdminsOutsideMembers(t *testing.T) {
	r := &Room{}
	r.SetMembers([]int{5, 1, 5, 3}, []int{1, 8})

	assert.Equal(t, []int{1, 3, 5}, r.Members)
	assert.Equal(t, []int{1}, r.Admins)
	assert.Equal(t, 3, r.CurrentMemberCount)
}

func TestCloneIsIndependent(t *testing.T) {
	r := NewRoom("general", RoomTypeGroup, 1)
	c := r.Clone()
	c.AddMember(2)

	assert.Equal(t, 1, r.CurrentMemberCount)
	assert.Equal(t, 2, c.CurrentMemberCount)
}
