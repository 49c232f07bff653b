package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Cache stores parsed pages by URL.
type Cache interface {
	Get(ctx context.Context, url string) (*ParsedContent, bool)
	Set(ctx context.Context, url string, content *ParsedContent)
}

// LRUCache is an in-process cache with a size bound and TTL.
type LRUCache struct {
	lru *expirable.LRU[string, *ParsedContent]
}

func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{lru: expirable.NewLRU[string, *ParsedContent](size, nil, ttl)}
}

func (c *LRUCache) Get(_ context.Context, url string) (*ParsedContent, bool) {
	return c.lru.Get(url)
}

func (c *LRUCache) Set(_ context.Context, url string, content *ParsedContent) {
	c.lru.Add(url, content)
}

// RedisCache shares parsed pages between server instances.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "page:"}
}

// Get treats any Redis failure as a miss.
func (c *RedisCache) Get(ctx context.Context, url string) (*ParsedContent, bool) {
	raw, err := c.rdb.Get(ctx, c.prefix+url).Bytes()
	if err != nil {
		if err != redis.Nil {
			scraperLog.WithError(err).Warn("page cache read failed")
		}
		return nil, false
	}
	var content ParsedContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, false
	}
	return &content, true
}

func (c *RedisCache) Set(ctx context.Context, url string, content *ParsedContent) {
	raw, err := json.Marshal(content)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+url, raw, c.ttl).Err(); err != nil {
		scraperLog.WithError(err).Warn("page cache write failed")
	}
}
