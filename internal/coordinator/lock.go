package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/arbitragex/engine/internal/coreerrors"
	"github.com/google/uuid"
)

// releaseLockScript deletes key only if its value still matches the
// holder's own token, so a lock whose TTL already expired and was
// re-acquired by someone else is never released out from under them.
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

func lockKey(name string) string { return "lock:" + name }

// AcquireLock attempts to take the named lock for ttl, returning a token
// to release it with. A false return means the lock is already held
// (ALREADY_STARTING/ALREADY_STOPPING territory for the caller).
func (c *Coordinator) AcquireLock(ctx context.Context, name string, ttlSeconds int) (token string, acquired bool, err error) {
	token = uuid.NewString()
	ok, err := c.kv.SetNX(ctx, lockKey(name), token, time.Duration(ttlSeconds)*time.Second)
	if err != nil {
		return "", false, coreerrors.Wrap(coreerrors.KindKVUnavailable, "acquire lock", err)
	}
	return token, ok, nil
}

// ReleaseLock releases the named lock only if token still owns it.
func (c *Coordinator) ReleaseLock(ctx context.Context, name, token string) error {
	_, err := c.kv.Eval(ctx, releaseLockScript, []string{lockKey(name)}, token)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindKVUnavailable, "release lock", err)
	}
	return nil
}

// WorkflowStartLockName and WorkflowStopLockName name the per-workflow
// locks guarding the Starting/Stopped transitions.
func WorkflowStartLockName(id string) string { return fmt.Sprintf("workflow_start:%s", id) }
func WorkflowStopLockName(id string) string  { return fmt.Sprintf("workflow_stop:%s", id) }
