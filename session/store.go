package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrNotFound is returned for unknown sessions and for sessions that are
	// revoked, expired or owned by another account.
	ErrNotFound = errors.New("session not found")
	// ErrCorrupt is returned when a stored record cannot be decoded.
	ErrCorrupt = errors.New("session record corrupt")
)

const (
	fieldID         = "id"
	fieldAccountID  = "account_id"
	fieldTokenHash  = "token_hash"
	fieldDeviceType = "device_type"
	fieldDeviceName = "device_name"
	fieldBrowser    = "browser"
	fieldOS         = "os"
	fieldIP         = "ip"
	fieldLocation   = "location"
	fieldActive     = "active"
	fieldCurrent    = "current"
	fieldLastActive = "last_active"
	fieldCreatedAt  = "created_at"
	fieldExpiresAt  = "expires_at"
)

// Demotes every other record of the account and inserts the new one in one
// step, so at most one record per account carries the current flag.
const createSessionScript = `
local members = redis.call("SMEMBERS", KEYS[1])
for _, sid in ipairs(members) do
  local k = ARGV[3] .. sid
  if redis.call("EXISTS", k) == 1 then
    redis.call("HSET", k, "current", "0")
  else
    redis.call("SREM", KEYS[1], sid)
  end
end
redis.call("HSET", KEYS[2], unpack(ARGV, 4))
redis.call("SADD", KEYS[1], ARGV[1])
redis.call("SET", KEYS[3], ARGV[1])
redis.call("SADD", KEYS[4], ARGV[2])
return #members
`

var createSessionLua = redis.NewScript(createSessionScript)

const revokeSessionScript = `
local f = redis.call("HMGET", KEYS[1], "account_id", "active", "expires_at")
local exp = tonumber(f[3])
if f[1] ~= ARGV[1] or f[2] ~= "1" or not exp or exp <= tonumber(ARGV[2]) then
  return 0
end
redis.call("HSET", KEYS[1], "active", "0", "current", "0")
return 1
`

var revokeSessionLua = redis.NewScript(revokeSessionScript)

const revokeOthersScript = `
local n = 0
local now = tonumber(ARGV[3])
for _, sid in ipairs(redis.call("SMEMBERS", KEYS[1])) do
  local k = ARGV[1] .. sid
  local f = redis.call("HMGET", k, "token_hash", "active", "expires_at")
  local exp = tonumber(f[3])
  if f[2] == "1" and exp and exp > now and f[1] ~= ARGV[2] then
    redis.call("HSET", k, "active", "0", "current", "0")
    n = n + 1
  end
end
return n
`

var revokeOthersLua = redis.NewScript(revokeOthersScript)

const touchSessionScript = `
local sid = redis.call("GET", KEYS[1])
if not sid then
  return 0
end
local k = ARGV[1] .. sid
local f = redis.call("HMGET", k, "account_id", "active", "expires_at")
local exp = tonumber(f[3])
if f[1] ~= ARGV[2] or f[2] ~= "1" or not exp or exp <= tonumber(ARGV[3]) then
  return 0
end
redis.call("HSET", k, "last_active", ARGV[3])
return 1
`

var touchSessionLua = redis.NewScript(touchSessionScript)

const purgeAccountScript = `
local n = 0
local cutoff = tonumber(ARGV[3])
for _, sid in ipairs(redis.call("SMEMBERS", KEYS[1])) do
  local k = ARGV[1] .. sid
  local f = redis.call("HMGET", k, "token_hash", "expires_at")
  local exp = tonumber(f[2])
  if not exp or exp <= cutoff then
    redis.call("DEL", k)
    if f[1] then
      redis.call("DEL", ARGV[2] .. f[1])
    end
    redis.call("SREM", KEYS[1], sid)
    n = n + 1
  end
end
if redis.call("SCARD", KEYS[1]) == 0 then
  redis.call("SREM", KEYS[2], ARGV[4])
end
return n
`

var purgeAccountLua = redis.NewScript(purgeAccountScript)

// Store persists session records in Redis hashes.
//
// Layout under prefix p:
//
//	p:s:<id>       hash, one record
//	p:a:<account>  set of the account's session ids
//	p:t:<hash>     token hash -> session id
//	p:accounts     set of accounts holding records, walked by the reaper
//
// Every mutation is a single Lua script, so the store assumes all keys live
// on one Redis shard.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a Store under the given key prefix.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "ss"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) sessionPrefix() string { return s.prefix + ":s:" }
func (s *Store) tokenPrefix() string   { return s.prefix + ":t:" }

func (s *Store) sessionKey(id string) string {
	return s.sessionPrefix() + id
}

func (s *Store) accountKey(accountID string) string {
	return s.prefix + ":a:" + accountID
}

func (s *Store) tokenKey(tokenHash string) string {
	return s.tokenPrefix() + tokenHash
}

func (s *Store) accountsKey() string {
	return s.prefix + ":accounts"
}

// Insert stores rec and clears the current flag on every other record of
// the account. rec.IsCurrent is stored as given.
//
//	Performance: 1 script, O(sessions of the account).
func (s *Store) Insert(ctx context.Context, rec Record) error {
	args := []interface{}{rec.ID, rec.AccountID, s.sessionPrefix()}
	args = append(args, encodeRecord(rec)...)

	keys := []string{
		s.accountKey(rec.AccountID),
		s.sessionKey(rec.ID),
		s.tokenKey(rec.TokenHash),
		s.accountsKey(),
	}
	if err := createSessionLua.Run(ctx, s.redis, keys, args...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the record with the given id in any state.
//
//	Performance: 1 HGETALL.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}
	return decodeRecord(fields)
}

// FindByTokenHash returns the record indexed under tokenHash in any state.
//
//	Performance: GET + HGETALL.
func (s *Store) FindByTokenHash(ctx context.Context, tokenHash string) (Record, error) {
	id, err := s.redis.Get(ctx, s.tokenKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.Get(ctx, id)
}

// ListByAccount returns every stored record of the account in any state.
// Ids whose hash is already gone are skipped.
//
//	Performance: SMEMBERS + one pipelined HGETALL per session.
func (s *Store) ListByAccount(ctx context.Context, accountID string) ([]Record, error) {
	ids, err := s.redis.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.sessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]Record, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := decodeRecord(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Revoke deactivates the session when it is live at now and owned by
// accountID. It reports whether a record changed.
func (s *Store) Revoke(ctx context.Context, accountID, id string, now time.Time) (bool, error) {
	n, err := revokeSessionLua.Run(ctx, s.redis,
		[]string{s.sessionKey(id)},
		accountID, now.UnixMilli(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// RevokeAllExcept deactivates every live session of the account whose token
// hash differs from keepTokenHash and returns how many changed.
func (s *Store) RevokeAllExcept(ctx context.Context, accountID, keepTokenHash string, now time.Time) (int, error) {
	n, err := revokeOthersLua.Run(ctx, s.redis,
		[]string{s.accountKey(accountID)},
		s.sessionPrefix(), keepTokenHash, now.UnixMilli(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// Touch sets last activity to now on the live session indexed by tokenHash
// when it belongs to accountID. It reports whether a record changed.
func (s *Store) Touch(ctx context.Context, accountID, tokenHash string, now time.Time) (bool, error) {
	n, err := touchSessionLua.Run(ctx, s.redis,
		[]string{s.tokenKey(tokenHash)},
		s.sessionPrefix(), accountID, now.UnixMilli(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// PurgeExpired deletes every record whose expiry is at or before cutoff,
// together with its token index entry, and returns how many were removed.
// Each account is purged atomically; accounts are walked with SSCAN.
func (s *Store) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	total := 0
	iter := s.redis.SScan(ctx, s.accountsKey(), 0, "", 100).Iterator()
	for iter.Next(ctx) {
		accountID := iter.Val()
		n, err := purgeAccountLua.Run(ctx, s.redis,
			[]string{s.accountKey(accountID), s.accountsKey()},
			s.sessionPrefix(), s.tokenPrefix(), cutoff.UnixMilli(), accountID,
		).Int64()
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		total += int(n)
	}
	if err := iter.Err(); err != nil {
		return total, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return total, nil
}

func encodeRecord(r Record) []interface{} {
	return []interface{}{
		fieldID, r.ID,
		fieldAccountID, r.AccountID,
		fieldTokenHash, r.TokenHash,
		fieldDeviceType, r.DeviceType,
		fieldDeviceName, r.DeviceName,
		fieldBrowser, r.Browser,
		fieldOS, r.OS,
		fieldIP, r.IPAddress,
		fieldLocation, r.Location,
		fieldActive, encodeBool(r.IsActive),
		fieldCurrent, encodeBool(r.IsCurrent),
		fieldLastActive, strconv.FormatInt(r.LastActive.UnixMilli(), 10),
		fieldCreatedAt, strconv.FormatInt(r.CreatedAt.UnixMilli(), 10),
		fieldExpiresAt, strconv.FormatInt(r.ExpiresAt.UnixMilli(), 10),
	}
}

func decodeRecord(f map[string]string) (Record, error) {
	lastActive, err1 := decodeMillis(f[fieldLastActive])
	createdAt, err2 := decodeMillis(f[fieldCreatedAt])
	expiresAt, err3 := decodeMillis(f[fieldExpiresAt])
	if err := errors.Join(err1, err2, err3); err != nil || f[fieldID] == "" || f[fieldAccountID] == "" {
		return Record{}, ErrCorrupt
	}

	return Record{
		ID:         f[fieldID],
		AccountID:  f[fieldAccountID],
		TokenHash:  f[fieldTokenHash],
		DeviceType: f[fieldDeviceType],
		DeviceName: f[fieldDeviceName],
		Browser:    f[fieldBrowser],
		OS:         f[fieldOS],
		IPAddress:  f[fieldIP],
		Location:   f[fieldLocation],
		IsActive:   f[fieldActive] == "1",
		IsCurrent:  f[fieldCurrent] == "1",
		LastActive: lastActive,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
	}, nil
}

func encodeBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func decodeMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
