package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/emrgen/rard/internal/compress"
	"github.com/emrgen/rard/internal/model"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const linkGenerationKey = "rard:links:generation"

// linksKey names a listing under the current generation, so bumping the generation
// orphans every older listing and lets the TTL reclaim it.
func linksKey(generation int64, kind model.EvidenceKind, antiquarianID *uint) string {
	scope := "null"
	if antiquarianID != nil {
		scope = strconv.FormatUint(uint64(*antiquarianID), 10)
	}
	return fmt.Sprintf("rard:links:%d:%s:%s", generation, kind, scope)
}

var _ LinkCache = (*RedisLinkCache)(nil)

type RedisLinkCache struct {
	client  *redis.Client
	encoder compress.Compress
	ttl     time.Duration
}

// RedisOptions configures the redis connection of the link cache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		Protocol: 2,
	})
}

func NewRedisLinkCache(client *redis.Client, encoder compress.Compress, ttl time.Duration) *RedisLinkCache {
	return &RedisLinkCache{client: client, encoder: encoder, ttl: ttl}
}

func (r *RedisLinkCache) Generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, linkGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *RedisLinkCache) GetLinks(ctx context.Context, generation int64, kind model.EvidenceKind, antiquarianID *uint) ([]*model.Link, bool, error) {
	res := r.client.Get(ctx, linksKey(generation, kind, antiquarianID))
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			return nil, false, nil
		}
		return nil, false, res.Err()
	}

	buf, err := res.Bytes()
	if err != nil {
		return nil, false, err
	}
	data, err := r.encoder.Decode(buf)
	if err != nil {
		return nil, false, err
	}

	var links []*model.Link
	if err := json.Unmarshal(data, &links); err != nil {
		return nil, false, err
	}
	return links, true, nil
}

func (r *RedisLinkCache) SetLinks(ctx context.Context, generation int64, kind model.EvidenceKind, antiquarianID *uint, links []*model.Link) error {
	marshal, err := json.Marshal(links)
	if err != nil {
		return err
	}
	data, err := r.encoder.Encode(marshal)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, linksKey(generation, kind, antiquarianID), data, r.ttl).Err()
}

func (r *RedisLinkCache) Invalidate(ctx context.Context) error {
	gen, err := r.client.Incr(ctx, linkGenerationKey).Result()
	if err != nil {
		return err
	}
	logrus.Debugf("link cache generation %d", gen)
	return nil
}
