// Package usercache caches user existence and usernames, negatives included,
// for services that do not own the user table.
package usercache

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Directory reports a confirmed absence as found=false with a nil error.
type Directory interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	Username(ctx context.Context, userID int64) (string, bool, error)
}

type Resolution uint8

const (
	Unresolved Resolution = iota
	Present
	Absent
)

func (r Resolution) String() string {
	switch r {
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "unresolved"
	}
}

const DefaultTTL = 5 * time.Minute

type existenceEntry struct {
	resolution Resolution
	storedAt   time.Time
}

type usernameEntry struct {
	username   string
	resolution Resolution
	storedAt   time.Time
}

type Cache struct {
	local   Directory
	remote  Directory
	enabled bool
	ttl     time.Duration
	now     func() time.Time

	existence sync.Map // int64 -> existenceEntry
	usernames sync.Map // int64 -> usernameEntry
	flight    singleflight.Group
}

type Option func(*Cache)

func WithRemote(remote Directory) Option {
	return func(c *Cache) {
		c.remote = remote
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithEnabled(enabled bool) Option {
	return func(c *Cache) {
		c.enabled = enabled
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func New(local Directory, opts ...Option) *Cache {
	c := &Cache{
		local:   local,
		enabled: true,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Resolve never looks up non-positive ids.
func (c *Cache) Resolve(ctx context.Context, userID int64) Resolution {
	if userID <= 0 {
		return Absent
	}

	if c.enabled {
		if value, ok := c.existence.Load(userID); ok {
			entry := value.(existenceEntry)
			if c.fresh(entry.storedAt) {
				slog.Debug("user existence cache hit", "user_id", userID, "result", entry.resolution)
				return entry.resolution
			}
		}
	}

	// Shared work must outlive the first caller's cancellation.
	shared := context.WithoutCancel(ctx)
	value, _, _ := c.flight.Do("exists:"+strconv.FormatInt(userID, 10), func() (any, error) {
		resolution := c.resolveExistence(shared, userID)
		if c.enabled {
			c.existence.Store(userID, existenceEntry{resolution: resolution, storedAt: c.now()})
		}
		return resolution, nil
	})

	resolution := value.(Resolution)
	slog.Debug("user existence resolved", "user_id", userID, "result", resolution)
	return resolution
}

func (c *Cache) Exists(ctx context.Context, userID int64) bool {
	return c.Resolve(ctx, userID) == Present
}

func (c *Cache) Username(ctx context.Context, userID int64) (string, bool) {
	if userID <= 0 {
		return "", false
	}

	if c.enabled {
		if value, ok := c.usernames.Load(userID); ok {
			entry := value.(usernameEntry)
			if c.fresh(entry.storedAt) {
				slog.Debug("username cache hit", "user_id", userID, "result", entry.resolution)
				return entry.username, entry.resolution == Present
			}
		}
	}

	shared := context.WithoutCancel(ctx)
	value, _, _ := c.flight.Do("username:"+strconv.FormatInt(userID, 10), func() (any, error) {
		entry := c.resolveUsername(shared, userID)
		if c.enabled {
			c.usernames.Store(userID, entry)
		}
		return entry, nil
	})

	entry := value.(usernameEntry)
	return entry.username, entry.resolution == Present
}

func (c *Cache) Usernames(ctx context.Context, userIDs []int64) map[int64]string {
	result := make(map[int64]string, len(userIDs))

	for _, userID := range userIDs {
		if _, done := result[userID]; done {
			continue
		}
		if username, ok := c.Username(ctx, userID); ok {
			result[userID] = username
		}
	}

	slog.Debug("usernames resolved", "requested", len(userIDs), "found", len(result))
	return result
}

// ValidatePair resolves both ids even when the first fails.
func (c *Cache) ValidatePair(ctx context.Context, senderID int64, receiverID int64) bool {
	if senderID <= 0 || receiverID <= 0 {
		slog.Warn("missing user id in pair", "sender_id", senderID, "receiver_id", receiverID)
		return false
	}

	if senderID == receiverID {
		slog.Warn("user tried to message themselves", "user_id", senderID)
		return false
	}

	senderExists := c.Exists(ctx, senderID)
	receiverExists := c.Exists(ctx, receiverID)

	if !senderExists {
		slog.Warn("sender does not exist", "user_id", senderID)
	}
	if !receiverExists {
		slog.Warn("receiver does not exist", "user_id", receiverID)
	}

	return senderExists && receiverExists
}

func (c *Cache) Clear(userID int64) {
	c.existence.Delete(userID)
	c.usernames.Delete(userID)
	slog.Debug("cleared user cache", "user_id", userID)
}

func (c *Cache) ClearAll() {
	c.existence.Clear()
	c.usernames.Clear()
	slog.Debug("cleared all user cache")
}

func (c *Cache) fresh(storedAt time.Time) bool {
	return c.now().Sub(storedAt) < c.ttl
}

func (c *Cache) resolveExistence(ctx context.Context, userID int64) Resolution {
	exists, err := c.local.UserExists(ctx, userID)
	if err != nil {
		slog.Warn("local user lookup failed", "user_id", userID, "error", err)
	} else if exists {
		return Present
	}

	if c.remote == nil {
		if err != nil {
			return Unresolved
		}
		return Absent
	}

	exists, err = c.remote.UserExists(ctx, userID)
	if err != nil {
		slog.Warn("remote authority unavailable for user lookup", "user_id", userID, "error", err)
		return Unresolved
	}
	if exists {
		return Present
	}

	return Absent
}

func (c *Cache) resolveUsername(ctx context.Context, userID int64) usernameEntry {
	entry := usernameEntry{resolution: Absent}

	username, found, err := c.local.Username(ctx, userID)
	switch {
	case err != nil:
		slog.Warn("local username lookup failed", "user_id", userID, "error", err)
		entry.resolution = Unresolved
	case found:
		entry.username = username
		entry.resolution = Present
	}

	if entry.resolution != Present && c.remote != nil {
		username, found, err = c.remote.Username(ctx, userID)
		switch {
		case err != nil:
			slog.Warn("remote authority unavailable for username lookup", "user_id", userID, "error", err)
			entry.resolution = Unresolved
		case found:
			entry.username = username
			entry.resolution = Present
		default:
			entry.resolution = Absent
		}
	}

	entry.storedAt = c.now()
	return entry
}
