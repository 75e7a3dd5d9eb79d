package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "window:"

type redisStore struct {
	client   *redis.Client
	capacity int
}

// NewRedisStore connects to Redis and returns a Store keeping one list per category.
func NewRedisStore(addr string, capacity int) (Store, error) {
	opt := &redis.Options{
		Addr: addr,
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisStore{client: client, capacity: capacity}, nil
}

// mergeLua appends unseen members, trims to the newest ARGV[1] entries and returns
// the list before and after, all in one atomic script run.
var mergeLua = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])

local prev = redis.call('LRANGE', key, 0, -1)
local seen = {}
for _, v in ipairs(prev) do
  seen[v] = true
end
for i = 2, #ARGV do
  local v = ARGV[i]
  if not seen[v] then
    redis.call('RPUSH', key, v)
    seen[v] = true
  end
end
if redis.call('LLEN', key) > capacity then
  redis.call('LTRIM', key, -capacity, -1)
end
local curr = redis.call('LRANGE', key, 0, -1)
return {prev, curr}
`)

func (r *redisStore) MergeAndSnapshot(ctx context.Context, c Category, incoming []int64) ([]int64, []int64, error) {
	if !c.Valid() {
		return []int64{}, []int64{}, ErrInvalidCategory
	}
	args := make([]interface{}, 0, len(incoming)+1)
	args = append(args, r.capacity)
	for _, v := range incoming {
		args = append(args, strconv.FormatInt(v, 10))
	}
	res, err := mergeLua.Run(ctx, r.client, []string{keyPrefix + string(c)}, args...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("merge window %s: %w", c, err)
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return nil, nil, fmt.Errorf("unexpected redis response: %v", res)
	}
	prev, err := parseMembers(arr[0])
	if err != nil {
		return nil, nil, err
	}
	curr, err := parseMembers(arr[1])
	if err != nil {
		return nil, nil, err
	}
	return prev, curr, nil
}

func (r *redisStore) Window(ctx context.Context, c Category) ([]int64, error) {
	if !c.Valid() {
		return []int64{}, ErrInvalidCategory
	}
	members, err := r.client.LRange(ctx, keyPrefix+string(c), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read window %s: %w", c, err)
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		v, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse window member %q: %w", m, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *redisStore) Average(ctx context.Context, c Category) (float64, error) {
	values, err := r.Window(ctx, c)
	if err != nil {
		return 0, err
	}
	return Mean(values), nil
}

func (r *redisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func parseMembers(raw interface{}) ([]int64, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected redis list: %v", raw)
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		var v int64
		switch t := item.(type) {
		case string:
			parsed, err := strconv.ParseInt(t, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse window member %q: %w", t, err)
			}
			v = parsed
		case int64:
			v = t
		default:
			return nil, fmt.Errorf("unexpected window member %v", item)
		}
		out = append(out, v)
	}
	return out, nil
}
