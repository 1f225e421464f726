package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"MODE", "HTTP_ADDR", "DB_DRIVER", "REDIS_URL", "INSTANCE_TTL_SEC", "LOCAL_USERS", "GRADE_LATENCY_MS"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.Mode != ModeOffline || c.HTTPAddr != ":8080" || c.DBDriver != "sqlite" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.InstanceTTL != time.Hour || c.GradeLatency != 0 || len(c.LocalUsers) != 0 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("INSTANCE_TTL_SEC", "60")
	t.Setenv("GRADE_LATENCY_MS", "250")
	t.Setenv("ENABLE_LOCAL_AUTH", "0")
	t.Setenv("LOCAL_USERS", "ana:learner:h1, bob:author:h2 ,")
	t.Setenv("CORS_ORIGINS_ONLINE", "https://a.example,https://b.example")

	c := FromEnv()
	if c.InstanceTTL != time.Minute || c.GradeLatency != 250*time.Millisecond {
		t.Fatalf("durations: %v %v", c.InstanceTTL, c.GradeLatency)
	}
	if c.EnableLocalAuth {
		t.Fatal("local auth should be off")
	}
	if len(c.LocalUsers) != 2 || c.LocalUsers[1] != "bob:author:h2" {
		t.Fatalf("local users: %q", c.LocalUsers)
	}
	if got := c.CORSOrigins(); len(got) != 2 || got[0] != "https://a.example" {
		t.Fatalf("cors: %q", got)
	}
}

func TestEnvIntRejectsGarbage(t *testing.T) {
	t.Setenv("INSTANCE_TTL_SEC", "soon")
	if got := envInt("INSTANCE_TTL_SEC", 7); got != 7 {
		t.Fatalf("got %d", got)
	}
}
