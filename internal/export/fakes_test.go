package export

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/kbexport/internal/blob"
	"github.com/randalmurphal/kbexport/internal/db"
)

// fakeStore is an in-memory DocumentStore that records lookups.
type fakeStore struct {
	docs        map[string]*db.Document
	attachments map[string]*db.Attachment
	findErr     error
	lookups     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:        make(map[string]*db.Document),
		attachments: make(map[string]*db.Attachment),
	}
}

func (s *fakeStore) addDoc(d *db.Document) *fakeStore {
	if d.TeamID == "" {
		d.TeamID = "team-1"
	}
	if d.URLID == "" {
		d.URLID = "u-" + d.ID
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		d.UpdatedAt = d.CreatedAt
	}
	s.docs[d.ID] = d
	return s
}

func (s *fakeStore) addAttachment(a *db.Attachment) *fakeStore {
	if a.TeamID == "" {
		a.TeamID = "team-1"
	}
	if a.Key == "" {
		a.Key = "uploads/" + a.TeamID + "/" + a.ID + "/" + a.Name
	}
	s.attachments[a.ID] = a
	return s
}

func (s *fakeStore) FindDocument(_ context.Context, id string, _ ...db.FindOption) (*db.Document, error) {
	s.lookups = append(s.lookups, id)
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.docs[id], nil
}

func (s *fakeStore) FindAttachments(_ context.Context, teamID string, ids []string) ([]*db.Attachment, error) {
	var out []*db.Attachment
	for _, id := range ids {
		if a, ok := s.attachments[id]; ok && a.TeamID == teamID {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeBlobs serves blobs from memory, counting fetches per key and the peak
// number of concurrent fetches.
type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	failing map[string]error
	calls   map[string]int
	delay   time.Duration

	inflight atomic.Int32
	peak     atomic.Int32
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{
		objects: make(map[string][]byte),
		failing: make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (b *fakeBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	n := b.inflight.Add(1)
	defer b.inflight.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[key]++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := b.failing[key]; ok {
		return nil, err
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return data, nil
}

func (b *fakeBlobs) totalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.calls {
		total += n
	}
	return total
}

func (b *fakeBlobs) callsFor(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}
