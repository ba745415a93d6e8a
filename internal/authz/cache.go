package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

// Default TTLs for the shared cache tier.
const (
	DefaultPermissionTTL = 15 * time.Minute
	DefaultRoleViewTTL   = 5 * time.Minute
)

// Cache key construction lives here and nowhere else. Every reader, writer
// and invalidator goes through these two builders so the write path and the
// invalidate path cannot drift apart.
func permissionsKey(userID int64) string {
	return "authz:perms:" + strconv.FormatInt(userID, 10)
}

func roleViewKey(userID int64) string {
	return "authz:roleview:" + strconv.FormatInt(userID, 10)
}

// Cache is the shared TTL tier backed by Redis. Read failures degrade to a
// cache miss so a flaky cache can never deny (or grant) by itself; delete
// failures are surfaced because a silently skipped invalidation would leave
// stale authority live for up to a full TTL.
type Cache struct {
	client      *redis.Client
	permTTL     time.Duration
	roleViewTTL time.Duration
	logger      *slog.Logger
}

// NewCache constructs the shared cache tier. A nil client disables the tier;
// every lookup becomes a miss and invalidation becomes a no-op.
func NewCache(client *redis.Client, permTTL, roleViewTTL time.Duration, logger *slog.Logger) *Cache {
	if permTTL <= 0 {
		permTTL = DefaultPermissionTTL
	}
	if roleViewTTL <= 0 {
		roleViewTTL = DefaultRoleViewTTL
	}
	return &Cache{client: client, permTTL: permTTL, roleViewTTL: roleViewTTL, logger: logger}
}

// GetPermissions returns the cached resolved permission list for a user.
func (c *Cache) GetPermissions(ctx context.Context, userID int64) ([]catalog.Permission, bool) {
	var perms []catalog.Permission
	if !c.fetch(ctx, permissionsKey(userID), &perms) {
		return nil, false
	}
	return perms, true
}

// SetPermissions stores the resolved permission list. Best effort.
func (c *Cache) SetPermissions(ctx context.Context, userID int64, perms []catalog.Permission) {
	c.store(ctx, permissionsKey(userID), perms, c.permTTL)
}

// GetRoleView returns the cached merged role-assignment view for a user.
func (c *Cache) GetRoleView(ctx context.Context, userID int64) (*RoleView, bool) {
	var view RoleView
	if !c.fetch(ctx, roleViewKey(userID), &view) {
		return nil, false
	}
	return &view, true
}

// SetRoleView stores the merged role-assignment view. Best effort.
func (c *Cache) SetRoleView(ctx context.Context, userID int64, view *RoleView) {
	c.store(ctx, roleViewKey(userID), view, c.roleViewTTL)
}

// InvalidateUser deletes both cache entries for the user. The error is
// surfaced: callers mutate authority state and must not report success while
// a stale grant is still cached.
func (c *Cache) InvalidateUser(ctx context.Context, userID int64) error {
	return c.InvalidateUsers(ctx, userID)
}

// InvalidateUsers deletes both cache entries for each user in one round trip.
func (c *Cache) InvalidateUsers(ctx context.Context, userIDs ...int64) error {
	if c == nil || c.client == nil || len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs)*2)
	for _, id := range userIDs {
		keys = append(keys, permissionsKey(id), roleViewKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("authz: invalidate cache: %w", err)
	}
	return nil
}

func (c *Cache) fetch(ctx context.Context, key string, dest any) bool {
	if c == nil || c.client == nil {
		return false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && c.logger != nil {
			c.logger.Warn("authz cache read degraded to miss", slog.String("key", key), slog.Any("error", err))
		}
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		if c.logger != nil {
			c.logger.Warn("authz cache payload corrupt", slog.String("key", key), slog.Any("error", err))
		}
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("authz cache marshal failed", slog.String("key", key), slog.Any("error", err))
		}
		return
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("authz cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

// memo is the per-operation tier. It lives in the request context, created
// at the call boundary and discarded with it, so nothing leaks across
// requests.
type memo struct {
	perms map[int64][]catalog.Permission
	views map[int64]*RoleView
}

type memoContextKey struct{}

// WithMemo returns a context carrying a fresh per-operation memo. Install it
// once per logical operation (the HTTP middleware does this).
func WithMemo(ctx context.Context) context.Context {
	return context.WithValue(ctx, memoContextKey{}, &memo{
		perms: make(map[int64][]catalog.Permission),
		views: make(map[int64]*RoleView),
	})
}

func memoFrom(ctx context.Context) *memo {
	m, _ := ctx.Value(memoContextKey{}).(*memo)
	return m
}
