package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-core/internal/models"
	"chat-core/internal/repositories/memory"
)

type recordingNotifier struct {
	mu           sync.Mutex
	subscribed   map[int][]int
	unsubscribed map[int][]int
	joins        []int
	leaves       []int
	deletedRooms []int
	created      []models.MessageView
	deleted      []models.MessageView
	reads        []int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{subscribed: map[int][]int{}, unsubscribed: map[int][]int{}}
}

func (n *recordingNotifier) SubscribeMembers(_ context.Context, roomID int, userIDs ...int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subscribed[roomID] = append(n.subscribed[roomID], userIDs...)
}

func (n *recordingNotifier) UnsubscribeMembers(_ context.Context, roomID int, userIDs ...int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unsubscribed[roomID] = append(n.unsubscribed[roomID], userIDs...)
}

func (n *recordingNotifier) PresenceJoin(_ context.Context, _ int, userID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.joins = append(n.joins, userID)
}

func (n *recordingNotifier) PresenceLeave(_ context.Context, _ int, userID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leaves = append(n.leaves, userID)
}

func (n *recordingNotifier) RoomDeleted(_ context.Context, roomID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deletedRooms = append(n.deletedRooms, roomID)
}

func (n *recordingNotifier) MessageCreated(_ context.Context, view models.MessageView) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, view)
}

func (n *recordingNotifier) MessageDeleted(_ context.Context, view models.MessageView) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, view)
}

func (n *recordingNotifier) MessagesRead(_ context.Context, _ int, senderID, _ int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reads = append(n.reads, senderID)
}

type fixture struct {
	store        *memory.Store
	notifier     *recordingNotifier
	membership   *MembershipManager
	conversation *ConversationService
}

const (
	alice = 1
	bob   = 2
	carol = 3
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	for id, name := range map[int]string{alice: "alice", bob: "bob", carol: "carol"} {
		require.NoError(t, store.UpsertUser(context.Background(), models.User{ID: id, Username: name}))
	}
	n := newRecordingNotifier()
	m := NewMembershipManager(store, store, store, n)
	c := NewConversationService(store, store, store, m, n, time.Second)
	return &fixture{store: store, notifier: n, membership: m, conversation: c}
}

func intPtr(v int) *int { return &v }
