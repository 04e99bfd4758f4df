package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arbitragex/engine/pkg/redis"
)

// fakeRedis is a minimal in-memory stand-in for pkg/redis.Client, enough
// to exercise the coordinator's cache/lock/rate-limit/counter logic
// without a live Redis instance.
type fakeRedis struct {
	mu      sync.Mutex
	strings map[string]string
	zsets   map[string]map[string]float64
	failAll bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{strings: make(map[string]string), zsets: make(map[string]map[string]float64)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return "", fmt.Errorf("fake redis: unavailable")
	}
	v, ok := f.strings[key]
	if !ok {
		return "", fmt.Errorf("fake redis: key %q not found", key)
	}
	return v, nil
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return fmt.Errorf("fake redis: unavailable")
	}
	f.strings[key] = toStringValue(value)
	return nil
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return false, fmt.Errorf("fake redis: unavailable")
	}
	if _, exists := f.strings[key]; exists {
		return false, nil
	}
	f.strings[key] = toStringValue(value)
	return true, nil
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(keys) == 0 {
		return nil, fmt.Errorf("fake redis: eval requires a key")
	}
	key := keys[0]
	token := ""
	if len(args) > 0 {
		token = toStringValue(args[0])
	}
	if f.strings[key] == token {
		delete(f.strings, key)
		return int64(1), nil
	}
	return int64(0), nil
}

func (f *fakeRedis) ZAdd(ctx context.Context, key string, score float64, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return fmt.Errorf("fake redis: unavailable")
	}
	if f.zsets[key] == nil {
		f.zsets[key] = make(map[string]float64)
	}
	f.zsets[key][member] = score
	return nil
}

func (f *fakeRedis) ZRemRangeByScore(ctx context.Context, key, min, max string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.zsets[key]
	if set == nil {
		return nil
	}
	var minF, maxF float64
	fmt.Sscanf(min, "%f", &minF)
	fmt.Sscanf(max, "%f", &maxF)
	for member, score := range set {
		if score >= minF && score <= maxF {
			delete(set, member)
		}
	}
	return nil
}

func (f *fakeRedis) ZCard(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.zsets[key])), nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.strings, k)
	}
	return nil
}

func (f *fakeRedis) Exists(ctx context.Context, keys ...string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		if _, ok := f.strings[k]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	fmt.Sscanf(f.strings[key], "%d", &n)
	n++
	f.strings[key] = fmt.Sprintf("%d", n)
	return n, nil
}

func (f *fakeRedis) HGet(ctx context.Context, key, field string) (string, error) {
	return "", fmt.Errorf("not implemented")
}
func (f *fakeRedis) HSet(ctx context.Context, key string, values ...interface{}) error {
	return nil
}
func (f *fakeRedis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return nil, nil
}
func (f *fakeRedis) HDel(ctx context.Context, key string, fields ...string) error { return nil }

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

func (f *fakeRedis) Pipeline() redis.Pipeline { return nil }
func (f *fakeRedis) Close() error             { return nil }
func (f *fakeRedis) Ping(ctx context.Context) error { return nil }

func toStringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
