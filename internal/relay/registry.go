// internal/relay/registry.go
package relay

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Registry is the claimed-room-id namespace. Claim is atomic: exactly one
// host may hold a given id at a time, which is what forces a colliding
// host to regenerate its code.
type Registry interface {
	// Claim reserves roomID. It returns false when the id is already held.
	Claim(ctx context.Context, roomID string) (bool, error)
	// Release frees roomID. Releasing an unclaimed id is a no-op.
	Release(ctx context.Context, roomID string) error
}

// MemoryRegistry is the default single-process registry.
type MemoryRegistry struct {
	mu    sync.Mutex
	rooms map[string]struct{}
}

// NewMemoryRegistry builds an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{rooms: make(map[string]struct{})}
}

func (m *MemoryRegistry) Claim(_ context.Context, roomID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.rooms[roomID]; taken {
		return false, nil
	}
	m.rooms[roomID] = struct{}{}
	return true, nil
}

func (m *MemoryRegistry) Release(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
	return nil
}

// RedisRegistry shares the room namespace across relay instances. Claims
// are SETNX with a TTL so a crashed relay cannot strand a room code
// forever.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRegistry connects a registry using environment configuration:
//
//	INKGOLD_REDIS_ADDR (default "localhost:6379")
//	INKGOLD_REDIS_DB   (default 0)
func NewRedisRegistry(ctx context.Context) (*RedisRegistry, error) {
	addr := getEnv("INKGOLD_REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("INKGOLD_REDIS_DB", 0)

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisRegistry{client: client, ttl: 12 * time.Hour}, nil
}

func roomKey(roomID string) string {
	return "inkgold:room:" + roomID
}

func (r *RedisRegistry) Claim(ctx context.Context, roomID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, roomKey(roomID), "1", r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim %s: %w", roomID, err)
	}
	return ok, nil
}

func (r *RedisRegistry) Release(ctx context.Context, roomID string) error {
	if err := r.client.Del(ctx, roomKey(roomID)).Err(); err != nil {
		return fmt.Errorf("redis release %s: %w", roomID, err)
	}
	return nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
