package chunkindex

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/auth-platform/file-upload/internal/domain"
	"github.com/auth-platform/file-upload/internal/observability"
	"github.com/auth-platform/file-upload/internal/resilience"
)

// RemoteConfig configures the clustered deployment, where the Chunk Index
// is a Redis hash shared by every replica instead of the single-process
// MemoryIndex.
type RemoteConfig struct {
	Address       string
	DialTimeout   time.Duration
	FailThreshold int
	ResetTimeout  time.Duration
}

// RemoteIndex backs the Chunk Index with a shared Redis instance so the
// "exactly one winner" guarantee (§5) holds across replicas, not just
// within one process. Each session's accepted chunks live in a single
// Redis hash keyed by session ID, with HSETNX supplying the atomic
// conditional write Remember requires: Redis resolves concurrent HSETNX
// calls from any number of clients to exactly one winner per field, the
// same guarantee MemoryIndex gives within a process.
type RemoteIndex struct {
	client  *redis.Client
	breaker *resilience.CircuitBreaker
	log     *observability.Logger
}

// NewRemoteIndex dials Redis and returns a ready RemoteIndex. A failed
// initial ping is logged, not fatal — the circuit breaker takes over from
// there, matching how RedisCache degrades rather than blocking startup.
func NewRemoteIndex(ctx context.Context, cfg RemoteConfig, log *observability.Logger) *RemoteIndex {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		DialTimeout: dialTimeout,
	})

	presets := resilience.DefaultConfigs()
	breakerCfg := presets["cache"]
	if cfg.FailThreshold > 0 {
		breakerCfg.FailureThreshold = cfg.FailThreshold
	}
	if cfg.ResetTimeout > 0 {
		breakerCfg.ResetTimeout = cfg.ResetTimeout
	}
	ri := &RemoteIndex{
		client:  client,
		breaker: resilience.NewCircuitBreaker(breakerCfg),
		log:     log,
	}

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		ri.breaker.RecordFailure()
		if log != nil {
			log.WithComponent("chunkindex").Warn("remote chunk index unreachable: " + err.Error())
		}
	}

	return ri
}

// Close releases the underlying Redis connection pool.
func (r *RemoteIndex) Close() error {
	return r.client.Close()
}

func hashKey(sessionID string) string {
	return "chunkindex:" + sessionID
}

func field(index int) string {
	return strconv.Itoa(index)
}

// Remember issues the shared hash's HSETNX as the cross-replica
// conditional write: the first caller to set a session/index field wins,
// and every other concurrent caller, on any replica, observes the loss
// and reads back the winner's record.
func (r *RemoteIndex) Remember(ctx context.Context, sessionID string, index int, record domain.ChunkRecord) (domain.ChunkRecord, Outcome, error) {
	if !r.breaker.Allow() {
		return domain.ChunkRecord{}, AlreadyPresent, domain.New(domain.KindStorage, "chunk index circuit open", nil)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return domain.ChunkRecord{}, AlreadyPresent, domain.New(domain.KindStorage, "encode chunk record failed", err)
	}

	key := hashKey(sessionID)
	won, err := r.client.HSetNX(ctx, key, field(index), data).Result()
	if err != nil {
		r.breaker.RecordFailure()
		return domain.ChunkRecord{}, AlreadyPresent, domain.New(domain.KindStorage, "chunk index remember failed", err)
	}
	r.breaker.RecordSuccess()

	if won {
		return record, NewlyStored, nil
	}

	existing, ok, err := r.Lookup(ctx, sessionID, index)
	if err != nil {
		return domain.ChunkRecord{}, AlreadyPresent, err
	}
	if !ok {
		// Lost the HSETNX race but the winner's write has since expired or
		// been forgotten; treat as this call's record never having landed.
		return domain.ChunkRecord{}, AlreadyPresent, domain.New(domain.KindStorage, "chunk index record vanished after race", nil)
	}
	return existing, AlreadyPresent, nil
}

func (r *RemoteIndex) Lookup(ctx context.Context, sessionID string, index int) (domain.ChunkRecord, bool, error) {
	if !r.breaker.Allow() {
		return domain.ChunkRecord{}, false, domain.New(domain.KindStorage, "chunk index circuit open", nil)
	}

	data, err := r.client.HGet(ctx, hashKey(sessionID), field(index)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.breaker.RecordSuccess()
			return domain.ChunkRecord{}, false, nil
		}
		r.breaker.RecordFailure()
		return domain.ChunkRecord{}, false, domain.New(domain.KindStorage, "chunk index lookup failed", err)
	}
	r.breaker.RecordSuccess()

	var record domain.ChunkRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.ChunkRecord{}, false, domain.New(domain.KindStorage, "decode chunk record failed", err)
	}
	return record, true, nil
}

func (r *RemoteIndex) Indices(ctx context.Context, sessionID string) ([]int, error) {
	if !r.breaker.Allow() {
		return nil, domain.New(domain.KindStorage, "chunk index circuit open", nil)
	}

	fields, err := r.client.HKeys(ctx, hashKey(sessionID)).Result()
	if err != nil {
		r.breaker.RecordFailure()
		return nil, domain.New(domain.KindStorage, "chunk index list failed", err)
	}
	r.breaker.RecordSuccess()

	set := make(map[int]struct{}, len(fields))
	for _, f := range fields {
		idx, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		set[idx] = struct{}{}
	}
	return sortedIndices(set), nil
}

func (r *RemoteIndex) Forget(ctx context.Context, sessionID string, index int) error {
	if !r.breaker.Allow() {
		return domain.New(domain.KindStorage, "chunk index circuit open", nil)
	}

	if err := r.client.HDel(ctx, hashKey(sessionID), field(index)).Err(); err != nil {
		r.breaker.RecordFailure()
		return domain.New(domain.KindStorage, "chunk index forget failed", err)
	}
	r.breaker.RecordSuccess()
	return nil
}

func (r *RemoteIndex) ForgetAll(ctx context.Context, sessionID string) error {
	if !r.breaker.Allow() {
		return domain.New(domain.KindStorage, "chunk index circuit open", nil)
	}

	if err := r.client.Del(ctx, hashKey(sessionID)).Err(); err != nil {
		r.breaker.RecordFailure()
		return domain.New(domain.KindStorage, "chunk index forget-all failed", err)
	}
	r.breaker.RecordSuccess()
	return nil
}

// Ping checks connectivity to the shared chunk index, for
// health.CacheChecker.
func (r *RemoteIndex) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
