package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/arise/internal/domain"
)

const (
	defaultKeyPrefix = "arise:leaderboard"
	pingTimeout      = 5 * time.Second
)

// putStanding writes a standing unless the cache already holds a later one
// for the same account. Events for one account can be delivered out of
// order; the ledger sequence decides which is newer.
//
// KEYS: scores, names, guilds, seqs. ARGV: member, score, username, guild, seq.
var putStanding = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[4], ARGV[1]) or '0')
local seq = tonumber(ARGV[5])
if current > 0 and seq <= current then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
if ARGV[4] ~= '' then
	redis.call('HSET', KEYS[3], ARGV[1], ARGV[4])
end
if seq > 0 then
	redis.call('HSET', KEYS[4], ARGV[1], seq)
end
return 1
`)

// RedisCache keeps standings in a sorted set keyed by user id, with usernames,
// guilds and ledger sequences in companion hashes.
type RedisCache struct {
	rdb      *redis.Client
	scoreKey string
	nameKey  string
	guildKey string
	seqKey   string
}

// RedisConfig configures the Redis connection
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisCache{
		rdb:      rdb,
		scoreKey: prefix + ":scores",
		nameKey:  prefix + ":names",
		guildKey: prefix + ":guilds",
		seqKey:   prefix + ":seqs",
	}, nil
}

// Put records the standing of one account. A standing older than the cached
// one, by ledger sequence, is dropped.
func (c *RedisCache) Put(ctx context.Context, s domain.Standing) error {
	keys := []string{c.scoreKey, c.nameKey, c.guildKey, c.seqKey}
	err := putStanding.Run(ctx, c.rdb, keys, s.UserID.String(), s.Score, s.Username, s.Guild, s.Seq).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("put standing: %w", err)
	}
	return nil
}

// Replace swaps the cached board for the given standings
func (c *RedisCache) Replace(ctx context.Context, standings []domain.Standing) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.scoreKey, c.nameKey, c.guildKey, c.seqKey)
		if len(standings) == 0 {
			return nil
		}
		members := make([]*redis.Z, len(standings))
		names := make(map[string]interface{}, len(standings))
		guilds := make(map[string]interface{})
		seqs := make(map[string]interface{})
		for i, s := range standings {
			member := s.UserID.String()
			members[i] = &redis.Z{Score: float64(s.Score), Member: member}
			names[member] = s.Username
			if s.Guild != "" {
				guilds[member] = s.Guild
			}
			if s.Seq > 0 {
				seqs[member] = s.Seq
			}
		}
		pipe.ZAdd(ctx, c.scoreKey, members...)
		pipe.HSet(ctx, c.nameKey, names)
		if len(guilds) > 0 {
			pipe.HSet(ctx, c.guildKey, guilds)
		}
		if len(seqs) > 0 {
			pipe.HSet(ctx, c.seqKey, seqs)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace leaderboard: %w", err)
	}
	return nil
}

// Top returns up to limit standings, highest score first
func (c *RedisCache) Top(ctx context.Context, limit int) ([]domain.Standing, error) {
	entries, err := c.rdb.ZRevRangeWithScores(ctx, c.scoreKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	fields := make([]string, len(entries))
	for i, z := range entries {
		fields[i], _ = z.Member.(string)
	}
	names, err := c.rdb.HMGet(ctx, c.nameKey, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard names: %w", err)
	}
	guilds, err := c.rdb.HMGet(ctx, c.guildKey, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard guilds: %w", err)
	}

	out := make([]domain.Standing, 0, len(entries))
	for i, z := range entries {
		id, err := uuid.Parse(fields[i])
		if err != nil {
			return nil, fmt.Errorf("parse leaderboard member %q: %w", fields[i], err)
		}
		username, _ := names[i].(string)
		guild, _ := guilds[i].(string)
		score := int(z.Score)
		out = append(out, domain.Standing{
			Position: i + 1,
			UserID:   id,
			Username: username,
			Guild:    guild,
			Score:    score,
			Rank:     domain.RankFor(score),
		})
	}
	return out, nil
}

// Close closes the Redis client
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

var _ Cache = (*RedisCache)(nil)
