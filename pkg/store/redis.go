package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/bortok/ixvscripts/pkg/snapshot"
	"github.com/bortok/ixvscripts/pkg/util"
)

// Redis key layout. Each snapshot is one hash; the index set names every
// saved host so List does not have to scan the keyspace.
const (
	redisTable = "NTOCONFIG_SNAPSHOT"
	redisIndex = "NTOCONFIG_SNAPSHOTS"
)

// RedisConfig locates the Redis instance holding snapshots.
type RedisConfig struct {
	Addr string
	DB   int
	// Tunnel, when set, reaches Addr through an SSH jump host. Addr is then
	// resolved on the jump host's side.
	Tunnel *TunnelConfig
}

// Redis stores snapshots as hashes in a Redis database.
type Redis struct {
	client *redis.Client
	tunnel *SSHTunnel
}

// NewRedis connects to Redis and verifies the connection with a PING.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis store: address is required: %w", util.ErrInvalidConfig)
	}

	s := &Redis{}
	addr := cfg.Addr
	if cfg.Tunnel != nil {
		tun, err := NewSSHTunnel(*cfg.Tunnel, cfg.Addr)
		if err != nil {
			return nil, err
		}
		s.tunnel = tun
		addr = tun.LocalAddr()
		util.WithFields(map[string]interface{}{
			"jump_host": cfg.Tunnel.Host,
			"remote":    cfg.Addr,
			"local":     addr,
		}).Debug("redis store: SSH tunnel open")
	}

	s.client = redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.Close()
		return nil, fmt.Errorf("redis store %s: %w", cfg.Addr, err)
	}
	return s, nil
}

func redisKey(host string) string {
	return redisTable + "|" + util.SanitizeHost(host)
}

func (s *Redis) Save(ctx context.Context, host string, snap *snapshot.Snapshot) error {
	enc, err := encode(snap)
	if err != nil {
		return err
	}
	key := redisKey(host)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"compact", enc.compact,
			"pretty", enc.pretty,
			"saved_at", time.Now().UTC().Format(time.RFC3339),
		)
		pipe.SAdd(ctx, redisIndex, util.SanitizeHost(host))
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving snapshot for %s: %w", host, err)
	}
	return nil
}

func (s *Redis) Load(ctx context.Context, host string) (*snapshot.Snapshot, error) {
	data, err := s.client.HGet(ctx, redisKey(host), "compact").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(host)
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot for %s: %w", host, err)
	}
	return decode(host, data)
}

func (s *Redis) List(ctx context.Context) ([]string, error) {
	hosts, err := s.client.SMembers(ctx, redisIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	hosts = slices.DeleteFunc(hosts, func(h string) bool { return strings.TrimSpace(h) == "" })
	slices.Sort(hosts)
	return hosts, nil
}

// Delete removes a host's snapshot. Deleting an absent host is not an error.
func (s *Redis) Delete(ctx context.Context, host string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKey(host))
		pipe.SRem(ctx, redisIndex, util.SanitizeHost(host))
		return nil
	})
	return err
}

func (s *Redis) Close() error {
	var errs []error
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	if s.tunnel != nil {
		errs = append(errs, s.tunnel.Close())
	}
	return errors.Join(errs...)
}
