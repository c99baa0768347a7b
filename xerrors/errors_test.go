package xerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestDeriveMatchesSentinel(t *testing.T) {
	err := ErrUnknownVertex.Derive("vertex %q", "x")

	assert.ErrorIs(t, err, ErrUnknownVertex)
	assert.NotErrorIs(t, err, ErrIndexNotFound)
	assert.Equal(t, "vertex \"x\"", err.Detail)
	assert.Empty(t, ErrUnknownVertex.Detail, "sentinel must stay untouched")
	assert.NotEmpty(t, err.Stack)
	assert.Equal(t, codes.NotFound, err.GRPCCode())
}

func TestWrapKeepsCode(t *testing.T) {
	base := ErrNotTree.Derive("vertex 3 has two parents")
	wrapped := fmt.Errorf("load: %w", Wrap(base, ErrInternal, "build index"))

	assert.ErrorIs(t, wrapped, ErrNotTree)
	e, ok := FromError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrFailedPrecondition, e.Type)
	assert.Equal(t, codes.FailedPrecondition, e.ToGRPCStatus().Code())
	assert.Nil(t, Wrap(nil, ErrInternal, "noop"))
}

func TestWrapForeignError(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, ErrUnavailable, "neo4j")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, codes.Unavailable, err.GRPCCode())
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPreconditionPanics(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(*Error)
		require.True(t, ok)
		assert.ErrorIs(t, err, ErrInvalidRange)
		assert.Contains(t, err.Error(), "i=3 j=1")
	}()
	Precondition(ErrInvalidRange, "i=%d j=%d", 3, 1)
}

func TestWithCauseChainsSentinels(t *testing.T) {
	open := ErrCircuitOpen.Derive("neo4j-rmq")
	err := ErrSourceUnavailable.Derive("neo4j query").WithCause(open)

	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.NotErrorIs(t, err, ErrNotTree)
}

func TestWithContext(t *testing.T) {
	err := ErrUnknownVertex.Derive("vertex %q", "x").WithContext("index", "org").WithContext("vertex", "x")

	assert.Equal(t, map[string]any{"index": "org", "vertex": "x"}, err.Context)
	assert.Empty(t, ErrUnknownVertex.Context)

	bare := (&Error{Code: 1}).WithContext("k", 1)
	assert.Equal(t, 1, bare.Context["k"])
}
