package utils

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
)

// RedisSeenStore caches which stories a viewer has already seen. Seen marks
// are never deleted, so a cached true is always correct; a cached false only
// means "unknown" and the caller falls back to the database.
type RedisSeenStore struct {
	inner     *redis.Client
	keyParser RedisKeyParser
}

const (
	// Redis only has string type, there is no boolean or int, so we use "1" to represent true
	RedisTrue  = "1"
	RedisFalse = "0"
)

var ctx = context.Background()

func GetRedisSeenStore() (*RedisSeenStore, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
		Password: os.Getenv("REDIS_PASSWD"),
		DB:       0, // use default DB
	})
	_, err := redisClient.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	return &RedisSeenStore{
		inner:     redisClient,
		keyParser: RedisKeyParser{delimiter: "__"},
	}, nil
}

type RedisKeyParser struct {
	delimiter string
}

func (r RedisKeyParser) DecodeSeenKey(key string) (string, string, error) {
	splits := strings.Split(key, r.delimiter)
	if (len(splits)) != 2 {
		return "", "", fmt.Errorf("invalid key: %s", key)
	}
	return splits[0], splits[1], nil
}

func (r RedisKeyParser) ValidateId(id string) bool {
	return !strings.Contains(id, r.delimiter)
}

func (r RedisKeyParser) MustEncodeSeenKey(viewerID string, storyID string) string {
	if !r.ValidateId(viewerID) || !r.ValidateId(storyID) {
		panic(fmt.Errorf("invalid viewerID or storyID with delimiter: %s, %s, %s", viewerID, storyID, r.delimiter))
	}
	return fmt.Sprintf("%s%s%s", viewerID, r.delimiter, storyID)
}

// GetSeenStatus returns a seen flag per story id, in input order.
func (r *RedisSeenStore) GetSeenStatus(storyIDs []string, viewerID string) ([]bool, error) {
	if len(storyIDs) == 0 {
		return []bool{}, nil
	}

	keys := []string{}
	for _, sid := range storyIDs {
		keys = append(keys, r.keyParser.MustEncodeSeenKey(viewerID, sid))
	}

	res, err := r.inner.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	status := []bool{}
	for _, v := range res {
		if v == nil {
			status = append(status, false)
			continue
		}
		if v == RedisTrue {
			status = append(status, true)
			continue
		}
		status = append(status, false)
	}
	return status, nil
}

// MarkSeen records the marks in cache. Best-effort, callers log and move on
// when this fails.
func (r *RedisSeenStore) MarkSeen(storyIDs []string, viewerID string) error {
	if len(storyIDs) == 0 {
		return nil
	}
	keyValues := []interface{}{}
	for _, sid := range storyIDs {
		keyValues = append(keyValues, r.keyParser.MustEncodeSeenKey(viewerID, sid))
		keyValues = append(keyValues, RedisTrue)
	}
	return r.inner.MSet(ctx, keyValues...).Err()
}
