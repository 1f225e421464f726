package cache

import (
	"context"
	"testing"
	"time"

	"github.com/mind-engage/quiztab/internal/instance"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid-redis", "redis://localhost:6379", false},
		{"valid-with-db", "redis://localhost:6379/0", false},
		{"empty", "", true},
		{"bad-scheme", "http://localhost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewRedis_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	_, err := NewRedis(t.Context(), "redis://localhost:59999", time.Minute)
	if err == nil {
		t.Fatal("NewRedis() should return error for unreachable host")
	}
}

func TestMemoryExpiresAndDrops(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	inst := instance.Instance{InstanceID: instance.ID("q", 7), Seed: 7}
	if err := m.Put(ctx, "q", inst); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got, ok, _ := m.Get(ctx, "q", 7); !ok || got.InstanceID != inst.InstanceID {
		t.Fatalf("want cached instance, got %v %v", got, ok)
	}
	if _, ok, _ := m.Get(ctx, "q", 8); ok {
		t.Fatal("other seed must miss")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := m.Get(ctx, "q", 7); ok {
		t.Fatal("entry should have expired")
	}

	_ = m.Put(ctx, "q", inst)
	_ = m.Drop(ctx, "q", 7)
	if _, ok, _ := m.Get(ctx, "q", 7); ok {
		t.Fatal("dropped entry still present")
	}
}

func TestMemoryPutSweepsExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Millisecond)
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	for i := range 10000 {
		if err := m.Put(ctx, "q", instance.Instance{Seed: int64(i)}); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	now = now.Add(time.Hour)
	if err := m.Put(ctx, "q", instance.Instance{Seed: -1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got := m.Len(); got != 1 {
		t.Fatalf("entries after expiry = %d, want 1", got)
	}
}

func TestMemoryCapEvictsOldest(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	m.max = 2
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	for seed := int64(1); seed <= 3; seed++ {
		if err := m.Put(ctx, "q", instance.Instance{Seed: seed}); err != nil {
			t.Fatalf("put %d: %v", seed, err)
		}
		now = now.Add(time.Second)
	}
	if got := m.Len(); got != 2 {
		t.Fatalf("entries = %d, want 2", got)
	}
	if _, ok, _ := m.Get(ctx, "q", 1); ok {
		t.Fatal("oldest entry should be evicted")
	}
	if _, ok, _ := m.Get(ctx, "q", 3); !ok {
		t.Fatal("newest entry missing")
	}
}
