package queue_publisher

import (
    "context"
    "log"

    "github.com/redis/go-redis/v9"
)

// FeedCache drops cached HTTP responses after a mutation changes which
// ideas are for sale. Cache keys are hashed, so individual feed pages
// cannot be targeted; the whole response-cache namespace is flushed
// instead. Entries are cheap to rebuild and the event is rare (a sale,
// a cancellation, a sweep), so the blunt approach is fine.
type FeedCache struct {
    rdb    *redis.Client
    prefix string
}

// NewFeedCache returns an invalidator over the given client and cache
// key prefix. A nil client disables invalidation.
func NewFeedCache(rdb *redis.Client, prefix string) *FeedCache {
    if prefix == "" {
        prefix = "cache"
    }
    return &FeedCache{rdb: rdb, prefix: prefix}
}

// InvalidateIdeasFeed deletes every cached response under the prefix.
// Failures are logged only; stale entries age out on their TTL anyway.
func (f *FeedCache) InvalidateIdeasFeed(ctx context.Context) {
    if f.rdb == nil {
        return
    }
    iter := f.rdb.Scan(ctx, 0, f.prefix+":*", 100).Iterator()
    var keys []string
    for iter.Next(ctx) {
        keys = append(keys, iter.Val())
        if len(keys) >= 100 {
            if err := f.rdb.Del(ctx, keys...).Err(); err != nil {
                log.Printf("feed-cache: delete batch failed: %v", err)
                return
            }
            keys = keys[:0]
        }
    }
    if err := iter.Err(); err != nil {
        log.Printf("feed-cache: scan failed: %v", err)
        return
    }
    if len(keys) > 0 {
        if err := f.rdb.Del(ctx, keys...).Err(); err != nil {
            log.Printf("feed-cache: delete batch failed: %v", err)
        }
    }
}
