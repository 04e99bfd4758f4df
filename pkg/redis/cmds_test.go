package redis

import (
	"errors"
	"testing"

	"github.com/arbitragex/engine/internal/coreerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapCmdErrPassesNilThrough(t *testing.T) {
	assert.Nil(t, wrapCmdErr(nil))
}

func TestWrapCmdErrClassifiesAsKVUnavailable(t *testing.T) {
	cause := errors.New("connection reset")

	err := wrapCmdErr(cause)
	require.Error(t, err)
	kind, ok := coreerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, coreerrors.KindKVUnavailable, kind)
	assert.ErrorIs(t, err, cause)
}
