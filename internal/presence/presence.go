// Package presence mirrors the client registry into Redis so external
// tooling can observe connected draw clients. The mirror is purely
// informational: the in-memory registry stays the source of truth and
// every write here is best-effort.
package presence

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	clientIndexKey  = "easel:clients:index"
	clientKeyPrefix = "easel:client:"
	writeTimeout    = 2 * time.Second
	clientTTL       = 5 * time.Minute
)

// Mirror publishes client presence to Redis. A nil Mirror is valid and
// does nothing, so callers never need to branch on whether presence is
// enabled.
type Mirror struct {
	rdb *redis.Client
}

// New connects a mirror to the given Redis address.
func New(addr, password string, db int) *Mirror {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	log.Printf("Presence mirror connected to redis at %s (db %d)", addr, db)
	return &Mirror{rdb: rdb}
}

// NewWithClient wraps an existing Redis client; used by tests.
func NewWithClient(rdb *redis.Client) *Mirror {
	return &Mirror{rdb: rdb}
}

// ClientUp records a newly connected client in the index.
func (m *Mirror) ClientUp(clientID, addr string) {
	if m == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	fields := map[string]interface{}{
		"client_id": clientID,
		"addr":      addr,
		"last_seen": time.Now().UnixMilli(),
	}
	if err := m.rdb.HSet(ctx, clientKeyPrefix+clientID, fields).Err(); err != nil {
		log.Printf("Presence: record client %s: %v", clientID, err)
		return
	}
	if err := m.rdb.SAdd(ctx, clientIndexKey, clientID).Err(); err != nil {
		log.Printf("Presence: index client %s: %v", clientID, err)
		return
	}
	if err := m.rdb.Expire(ctx, clientKeyPrefix+clientID, clientTTL).Err(); err != nil {
		log.Printf("Presence: set TTL for client %s: %v", clientID, err)
	}
}

// Touch refreshes a client's last-seen timestamp and TTL.
func (m *Mirror) Touch(clientID string) {
	if m == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := m.rdb.HSet(ctx, clientKeyPrefix+clientID, "last_seen", time.Now().UnixMilli()).Err(); err != nil {
		log.Printf("Presence: touch client %s: %v", clientID, err)
		return
	}
	m.rdb.Expire(ctx, clientKeyPrefix+clientID, clientTTL)
}

// ClientDown removes a disconnected client from the index.
func (m *Mirror) ClientDown(clientID string) {
	if m == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := m.rdb.SRem(ctx, clientIndexKey, clientID).Err(); err != nil {
		log.Printf("Presence: deindex client %s: %v", clientID, err)
	}
	if err := m.rdb.Del(ctx, clientKeyPrefix+clientID).Err(); err != nil {
		log.Printf("Presence: drop client %s: %v", clientID, err)
	}
}

// Close releases the Redis connection.
func (m *Mirror) Close() error {
	if m == nil {
		return nil
	}
	return m.rdb.Close()
}
