package chat

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sentEvent struct {
	ConnID string
	Event  string
	Data   any
}

// recordingSender captures every event the service emits so tests can assert
// on exact recipients and payloads.
type recordingSender struct {
	mu         sync.Mutex
	sends      []sentEvent
	broadcasts []sentEvent
}

func (r *recordingSender) Send(connID, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, sentEvent{ConnID: connID, Event: event, Data: data})
}

func (r *recordingSender) Broadcast(event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, sentEvent{Event: event, Data: data})
}

func (r *recordingSender) eventsFor(connID, event string) []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []sentEvent
	for _, s := range r.sends {
		if s.ConnID == connID && s.Event == event {
			matched = append(matched, s)
		}
	}
	return matched
}

func (r *recordingSender) lastFor(connID, event string) (sentEvent, bool) {
	events := r.eventsFor(connID, event)
	if len(events) == 0 {
		return sentEvent{}, false
	}
	return events[len(events)-1], true
}

func (r *recordingSender) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = nil
	r.broadcasts = nil
}

// fakeStore satisfies BlobStore with configurable capacity and a record of
// deleted URLs.
type fakeStore struct {
	mu      sync.Mutex
	free    int64
	total   int64
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{free: 1 << 40, total: 1 << 40}
}

func (f *fakeStore) Delete(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	return nil
}

func (f *fakeStore) FreeBytes() int64  { return f.free }
func (f *fakeStore) TotalBytes() int64 { return f.total }

func (f *fakeStore) deletedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fakeThumbs struct{}

func (fakeThumbs) Thumbnail(url string) (string, error) { return url + ".thumb", nil }

// testClock drives the service's injected clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (*Service, *recordingSender, *fakeStore, *testClock) {
	t.Helper()
	sender := &recordingSender{}
	store := newFakeStore()
	clock := newTestClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(DefaultConfig(), sender, store, fakeThumbs{}, nil, logger)
	svc.now = clock.Now
	return svc, sender, store, clock
}

func mustLogin(t *testing.T, svc *Service, connID, name string) *User {
	t.Helper()
	user, err := svc.Login(connID, name)
	require.NoError(t, err)
	return user
}

// makeFriends establishes a mutual friendship between two logged-in connections.
func makeFriends(t *testing.T, svc *Service, a, b string) {
	t.Helper()
	req, err := svc.SendFriendRequest(a, b)
	require.NoError(t, err)
	require.NoError(t, svc.RespondFriendRequest(b, req.ID, true))
}

// joinRoom files and approves a join request for conn into the creator's room.
func joinRoom(t *testing.T, svc *Service, creatorConn, conn, roomID string) {
	t.Helper()
	req, err := svc.RequestJoinRoom(conn, roomID)
	require.NoError(t, err)
	require.NoError(t, svc.RespondJoinRoom(creatorConn, req.ID, roomID, true))
}

// completeUpload runs the whole happy-path upload flow into a target and
// returns the routed file message.
func completeUpload(t *testing.T, svc *Service, connID string, in InitUploadInput, blob StoredBlob) *Message {
	t.Helper()
	transfer, err := svc.InitFileUpload(connID, in)
	require.NoError(t, err)
	require.NoError(t, svc.AttachUploadBlob(transfer.ID, blob))
	msg, err := svc.CompleteFileUpload(connID, CompleteUploadInput{UploadID: transfer.ID})
	require.NoError(t, err)
	return msg
}
