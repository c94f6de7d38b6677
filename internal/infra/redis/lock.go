package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vietddude/ratesync/internal/core/domain"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Key helpers
func lockKey(task string) string {
	return fmt.Sprintf("ratesync:lock:%s", task)
}

func lastRunKey(task string) string {
	return fmt.Sprintf("ratesync:last_run:%s", task)
}

// TryLock attempts to take the run lock of a task. It returns an unlock
// function when acquired, or acquired=false when another process holds it.
func (c *Client) TryLock(
	ctx context.Context,
	task string,
	ttl time.Duration,
) (unlock func(context.Context) error, acquired bool, err error) {
	key := lockKey(task)
	token := uuid.NewString()

	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("setnx failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock = func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, c.rdb, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}
	return unlock, true, nil
}

// SaveRunResult stores the latest result of a task so other processes can
// report it.
func (c *Client) SaveRunResult(ctx context.Context, result domain.RunResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}
	return c.rdb.Set(ctx, lastRunKey(result.Task), data, 0).Err()
}

// LastRunResult loads the latest stored result of a task.
func (c *Client) LastRunResult(ctx context.Context, task string) (*domain.RunResult, error) {
	data, err := c.rdb.Get(ctx, lastRunKey(task)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}

	var result domain.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal run result: %w", err)
	}
	return &result, nil
}
