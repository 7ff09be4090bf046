package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Mongo     *bool     `json:"mongo,omitempty"`
	Postgres  *bool     `json:"postgres,omitempty"`
	Redis     *bool     `json:"redis,omitempty"`
	Store     string    `json:"store"`
	CheckedAt time.Time `json:"checkedAt"`
}

// HealthMonitor periodically pings the configured backends. Nil clients are skipped.
type HealthMonitor struct {
	Redis    *redis.Client
	Mongo    *mongo.Client
	Postgres *sqlx.DB
	Store    func() string
	Interval time.Duration

	mu      sync.RWMutex
	current HealthStatus
}

// Status returns latest stored health snapshot.
func (m *HealthMonitor) Status() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Check runs one round of probes and stores the result.
func (m *HealthMonitor) Check(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := HealthStatus{CheckedAt: time.Now()}
	if m.Redis != nil {
		ok := m.Redis.Ping(ctx).Err() == nil
		status.Redis = &ok
	}
	if m.Mongo != nil {
		ok := m.Mongo.Ping(ctx, nil) == nil
		status.Mongo = &ok
	}
	if m.Postgres != nil {
		ok := m.Postgres.PingContext(ctx) == nil
		status.Postgres = &ok
	}
	if m.Store != nil {
		status.Store = m.Store()
	}

	m.mu.Lock()
	m.current = status
	m.mu.Unlock()
	return status
}

// Run checks immediately and then every Interval until ctx is done.
func (m *HealthMonitor) Run(ctx context.Context) {
	interval := m.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	m.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
