package presence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dkeye/Trio/internal/config"
	"github.com/dkeye/Trio/internal/core"
)

func TestKey(t *testing.T) {
	if got := Key("abc"); got != "room:abc:members" {
		t.Fatalf("key %q", got)
	}
}

func TestUpdateUnreachable(t *testing.T) {
	p := NewRedisPresence(config.PresenceConfig{RedisAddr: "127.0.0.1:1", TTL: time.Minute})
	defer p.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Update(ctx, "r", []core.MemberDTO{{ID: "a"}}); err == nil {
		t.Fatal("expected error from unreachable server")
	}
}

// TestUpdateRoundTrip needs a live server in TRIO_TEST_REDIS_ADDR.
func TestUpdateRoundTrip(t *testing.T) {
	addr := os.Getenv("TRIO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TRIO_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	p := NewRedisPresence(config.PresenceConfig{RedisAddr: addr, TTL: time.Minute})
	defer p.Close()
	if err := p.Connect(ctx); err != nil {
		t.Fatal(err)
	}

	if err := p.Update(ctx, "presence-test", []core.MemberDTO{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatal(err)
	}
	got, err := p.client.SMembers(ctx, Key("presence-test")).Result()
	if err != nil || len(got) != 2 {
		t.Fatalf("members %v err %v", got, err)
	}
	if ttl := p.client.TTL(ctx, Key("presence-test")).Val(); ttl <= 0 {
		t.Fatalf("ttl %s", ttl)
	}

	if err := p.Update(ctx, "presence-test", nil); err != nil {
		t.Fatal(err)
	}
	if n := p.client.Exists(ctx, Key("presence-test")).Val(); n != 0 {
		t.Fatal("empty room key not deleted")
	}
}
