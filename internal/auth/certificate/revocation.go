package certificate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var isRevokedDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "fortis_certificate_revocation_check_duration_ms",
	Help:    "Latency of certificate revocation checks in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const revokedSerialKeyPrefix = "crl:serial:"

// InMemoryRevocationList is a process-local revocation list.
type InMemoryRevocationList struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{revoked: make(map[string]time.Time), now: time.Now}
}

// Revoke adds serial until ttl elapses. A zero ttl never expires.
func (l *InMemoryRevocationList) Revoke(_ context.Context, serial string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = l.now().Add(ttl)
	}
	l.revoked[serial] = expires
	return nil
}

func (l *InMemoryRevocationList) IsRevoked(_ context.Context, serial string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	expires, ok := l.revoked[serial]
	if !ok {
		return false, nil
	}
	return expires.IsZero() || l.now().Before(expires), nil
}

// RedisRevocationList shares revocations across instances. Entries carry
// the remaining certificate lifetime as TTL.
type RedisRevocationList struct {
	client redis.UniversalClient
}

func NewRedisRevocationList(client redis.UniversalClient) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

// Revoke marks serial as revoked. Uses SET with expiry; zero ttl keeps it forever.
func (l *RedisRevocationList) Revoke(ctx context.Context, serial string, ttl time.Duration) error {
	if serial == "" {
		return nil
	}
	return l.client.Set(ctx, revokedSerialKeyPrefix+serial, "1", ttl).Err()
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, serial string) (bool, error) {
	start := time.Now()
	defer func() {
		isRevokedDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if serial == "" {
		return false, nil
	}
	_, err := l.client.Get(ctx, revokedSerialKeyPrefix+serial).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
