package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSecure/account"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures.
var ErrRedisUnavailable = errors.New("redisstore: redis unavailable")

// Store is an account.Store backed by Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// New returns a Store using keys "<prefix>:acct:<id>". An empty prefix
// defaults to "ss".
func New(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "ss"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

var _ account.Store = (*Store)(nil)

func (s *Store) key(accountID string) string {
	return s.prefix + ":acct:" + accountID
}

// Create inserts a new profile with Version 1.
func (s *Store) Create(ctx context.Context, p account.Profile) (account.Profile, error) {
	if p.AccountID == "" {
		return account.Profile{}, errors.New("redisstore: account id required")
	}
	p = p.Clone()
	p.Version = 1

	encoded, err := encodeProfile(p)
	if err != nil {
		return account.Profile{}, err
	}
	ok, err := s.redis.SetNX(ctx, s.key(p.AccountID), encoded, 0).Result()
	if err != nil {
		return account.Profile{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return account.Profile{}, account.ErrExists
	}
	return p, nil
}

// FindByID implements account.Store.
func (s *Store) FindByID(ctx context.Context, accountID string) (account.Profile, error) {
	data, err := s.redis.Get(ctx, s.key(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return account.Profile{}, account.ErrNotFound
		}
		return account.Profile{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodeProfile(data)
}

// Save implements account.Store.
//
//	Performance: WATCH + GET + MULTI/SET/EXEC.
func (s *Store) Save(ctx context.Context, p account.Profile) (account.Profile, error) {
	key := s.key(p.AccountID)
	var saved account.Profile

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		cur, err := decodeProfile(data)
		if err != nil {
			return err
		}
		if cur.Version != p.Version {
			return account.ErrVersionConflict
		}

		next := p.Clone()
		next.Version++
		encoded, err := encodeProfile(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err != nil {
			return err
		}
		saved = next
		return nil
	}, key)

	switch {
	case err == nil:
		return saved, nil
	case errors.Is(err, redis.TxFailedErr):
		// Key changed between WATCH and EXEC.
		return account.Profile{}, account.ErrVersionConflict
	case errors.Is(err, redis.Nil):
		return account.Profile{}, account.ErrNotFound
	case errors.Is(err, account.ErrVersionConflict), errors.Is(err, errCorruptRecord):
		return account.Profile{}, err
	default:
		return account.Profile{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
}

// Delete removes the profile. Missing profiles are not an error.
func (s *Store) Delete(ctx context.Context, accountID string) error {
	if err := s.redis.Del(ctx, s.key(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
