package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Draft forms a client may park unfinished input for.
const (
	DraftRegistration = "registration"
	DraftOnboarding   = "onboarding"
)

// ValidDraftForm reports whether form names a known draft form.
func ValidDraftForm(form string) bool {
	return form == DraftRegistration || form == DraftOnboarding
}

// DraftStore keeps unfinished form input per user so it survives reloads and
// device switches. Drafts are opaque JSON blobs and expire after their TTL.
type DraftStore interface {
	Load(ctx context.Context, userID, form string) ([]byte, error)
	Save(ctx context.Context, userID, form string, data []byte, ttl time.Duration) error
	Clear(ctx context.Context, userID, form string) error
}

func draftKey(userID, form string) string {
	return "draft:" + userID + ":" + form
}

// RedisDrafts stores drafts as plain Redis strings with an expiry.
type RedisDrafts struct {
	rdb *redis.Client
}

func NewRedisDrafts(rdb *redis.Client) *RedisDrafts {
	return &RedisDrafts{rdb: rdb}
}

func (d *RedisDrafts) Load(ctx context.Context, userID, form string) ([]byte, error) {
	data, err := d.rdb.Get(ctx, draftKey(userID, form)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (d *RedisDrafts) Save(ctx context.Context, userID, form string, data []byte, ttl time.Duration) error {
	return d.rdb.Set(ctx, draftKey(userID, form), data, ttl).Err()
}

func (d *RedisDrafts) Clear(ctx context.Context, userID, form string) error {
	return d.rdb.Del(ctx, draftKey(userID, form)).Err()
}

type memoryDraft struct {
	data    []byte
	expires time.Time
}

// MemoryDrafts is the in-process DraftStore. Expired drafts are dropped on
// access.
type MemoryDrafts struct {
	mu     sync.Mutex
	drafts map[string]memoryDraft
	now    func() time.Time
}

func NewMemoryDrafts() *MemoryDrafts {
	return &MemoryDrafts{drafts: make(map[string]memoryDraft), now: time.Now}
}

func (d *MemoryDrafts) Load(ctx context.Context, userID, form string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := draftKey(userID, form)
	dr, ok := d.drafts[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !dr.expires.IsZero() && !d.now().Before(dr.expires) {
		delete(d.drafts, key)
		return nil, ErrNotFound
	}
	return append([]byte(nil), dr.data...), nil
}

func (d *MemoryDrafts) Save(ctx context.Context, userID, form string, data []byte, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	dr := memoryDraft{data: append([]byte(nil), data...)}
	if ttl > 0 {
		dr.expires = d.now().Add(ttl)
	}
	d.drafts[draftKey(userID, form)] = dr
	return nil
}

func (d *MemoryDrafts) Clear(ctx context.Context, userID, form string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.drafts, draftKey(userID, form))
	return nil
}
