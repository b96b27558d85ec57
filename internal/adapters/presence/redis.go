package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Trio/internal/config"
	"github.com/dkeye/Trio/internal/core"
	"github.com/dkeye/Trio/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisPresence mirrors room membership into Redis sets for external
// observers. Nothing in Trio reads these keys back.
type RedisPresence struct {
	client *redis.Client
	ttl    time.Duration
}

func Key(id domain.RoomID) string {
	return "room:" + string(id) + ":members"
}

func NewRedisPresence(cfg config.PresenceConfig) *RedisPresence {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 2 * time.Second,
	})
	return &RedisPresence{client: client, ttl: cfg.TTL}
}

// Connect verifies the server is reachable.
func (p *RedisPresence) Connect(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info().Str("module", "adapters.presence").Str("addr", p.client.Options().Addr).Msg("redis connected")
	return nil
}

// Update replaces the member set of the room. An empty room deletes the key.
func (p *RedisPresence) Update(ctx context.Context, id domain.RoomID, members []core.MemberDTO) error {
	key := Key(id)
	if len(members) == 0 {
		if err := p.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("presence del %s: %w", key, err)
		}
		return nil
	}

	ids := make([]any, 0, len(members))
	for _, m := range members {
		ids = append(ids, string(m.ID))
	}
	pipe := p.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, ids...)
	if p.ttl > 0 {
		pipe.Expire(ctx, key, p.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence update %s: %w", key, err)
	}
	return nil
}

func (p *RedisPresence) Close() error {
	return p.client.Close()
}
