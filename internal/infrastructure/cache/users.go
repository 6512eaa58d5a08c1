package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Zhima-Mochi/storefront/internal/domain/user"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/redis/go-redis/v9"
)

// UserRepository is a read-through Redis cache in front of another user repository.
type UserRepository struct {
	next   user.Repository
	client *redis.Client
	ttl    time.Duration
	prefix string
	log    observability.Logger
}

func NewUserRepository(next user.Repository, client *redis.Client, prefix string, ttl time.Duration, logger observability.Logger) *UserRepository {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if prefix != "" {
		prefix += ":"
	}
	return &UserRepository{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: prefix + "cache:user:",
		log:    logger.With(observability.F("component", "user_cache")),
	}
}

func (r *UserRepository) key(id string) string { return r.prefix + id }

func (r *UserRepository) allKey() string { return r.prefix + "all" }

func (r *UserRepository) Get(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	hit, err := r.load(ctx, r.key(id), &u)
	if hit {
		return &u, nil
	}
	if err != nil {
		r.log.Warn("cache_read_failed", observability.F("key", r.key(id)), observability.F("error", err))
	}

	found, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, r.key(id), found)
	return found, nil
}

func (r *UserRepository) List(ctx context.Context) ([]*user.User, error) {
	var users []*user.User
	hit, err := r.load(ctx, r.allKey(), &users)
	if hit {
		return users, nil
	}
	if err != nil {
		r.log.Warn("cache_read_failed", observability.F("key", r.allKey()), observability.F("error", err))
	}

	users, err = r.next.List(ctx)
	if err != nil {
		return nil, err
	}
	r.store(ctx, r.allKey(), users)
	return users, nil
}

func (r *UserRepository) Put(ctx context.Context, u *user.User) error {
	if err := r.next.Put(ctx, u); err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.key(u.ID), r.allKey()).Err(); err != nil {
		r.log.Warn("cache_invalidate_failed", observability.F("user_id", u.ID), observability.F("error", err))
	}
	return nil
}

func (r *UserRepository) load(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (r *UserRepository) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.log.Warn("cache_write_failed", observability.F("key", key), observability.F("error", err))
	}
}
