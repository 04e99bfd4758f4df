package redis

import (
	"github.com/arbitragex/engine/internal/coreerrors"
	"github.com/go-redis/redis/v8"
)

// wrapCmdErr classifies a go-redis command failure as KindKVUnavailable,
// the project's catch-all for "the durable substrate didn't answer" (the
// coordinator's rate limiter and cache both treat it as fail-open/transient).
// A nil err passes through unchanged.
func wrapCmdErr(err error) error {
	if err == nil {
		return nil
	}
	return coreerrors.Wrap(coreerrors.KindKVUnavailable, "redis command failed", err)
}

// baseCmd adapts a go-redis Cmder to the project's Cmder interface,
// reclassifying its error through coreerrors instead of leaking the raw
// go-redis error type to callers.
type baseCmd struct {
	cmd redis.Cmder
}

func (c *baseCmd) Name() string         { return c.cmd.Name() }
func (c *baseCmd) Args() []interface{}  { return c.cmd.Args() }
func (c *baseCmd) Err() error           { return wrapCmdErr(c.cmd.Err()) }
func (c *baseCmd) String() string       { return c.cmd.String() }

// stringCmd adapts *redis.StringCmd to StringCmd.
type stringCmd struct {
	cmd *redis.StringCmd
}

func (c *stringCmd) Name() string        { return c.cmd.Name() }
func (c *stringCmd) Args() []interface{} { return c.cmd.Args() }
func (c *stringCmd) Err() error          { return wrapCmdErr(c.cmd.Err()) }
func (c *stringCmd) String() string      { return c.cmd.String() }

func (c *stringCmd) Result() (string, error) {
	v, err := c.cmd.Result()
	return v, wrapCmdErr(err)
}

// statusCmd adapts *redis.StatusCmd to StatusCmd.
type statusCmd struct {
	cmd *redis.StatusCmd
}

func (c *statusCmd) Name() string        { return c.cmd.Name() }
func (c *statusCmd) Args() []interface{} { return c.cmd.Args() }
func (c *statusCmd) Err() error          { return wrapCmdErr(c.cmd.Err()) }
func (c *statusCmd) String() string      { return c.cmd.String() }

func (c *statusCmd) Result() (string, error) {
	v, err := c.cmd.Result()
	return v, wrapCmdErr(err)
}

// intCmd adapts *redis.IntCmd to IntCmd.
type intCmd struct {
	cmd *redis.IntCmd
}

func (c *intCmd) Name() string        { return c.cmd.Name() }
func (c *intCmd) Args() []interface{} { return c.cmd.Args() }
func (c *intCmd) Err() error          { return wrapCmdErr(c.cmd.Err()) }
func (c *intCmd) String() string      { return c.cmd.String() }

func (c *intCmd) Result() (int64, error) {
	v, err := c.cmd.Result()
	return v, wrapCmdErr(err)
}

// boolCmd adapts *redis.BoolCmd to BoolCmd.
type boolCmd struct {
	cmd *redis.BoolCmd
}

func (c *boolCmd) Name() string        { return c.cmd.Name() }
func (c *boolCmd) Args() []interface{} { return c.cmd.Args() }
func (c *boolCmd) Err() error          { return wrapCmdErr(c.cmd.Err()) }
func (c *boolCmd) String() string      { return c.cmd.String() }

func (c *boolCmd) Result() (bool, error) {
	v, err := c.cmd.Result()
	return v, wrapCmdErr(err)
}

// stringMapCmd adapts *redis.StringStringMapCmd to StringStringMapCmd.
type stringMapCmd struct {
	cmd *redis.StringStringMapCmd
}

func (c *stringMapCmd) Name() string        { return c.cmd.Name() }
func (c *stringMapCmd) Args() []interface{} { return c.cmd.Args() }
func (c *stringMapCmd) Err() error          { return wrapCmdErr(c.cmd.Err()) }
func (c *stringMapCmd) String() string      { return c.cmd.String() }

func (c *stringMapCmd) Result() (map[string]string, error) {
	v, err := c.cmd.Result()
	return v, wrapCmdErr(err)
}
