package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/rmq/config"
	"github.com/wyfcoding/rmq/engine"
	"github.com/wyfcoding/rmq/metrics"
	"github.com/wyfcoding/rmq/xerrors"
)

func TestRegistryReport(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register("ok", func(context.Context) error { return nil })

	rep := r.Check(context.Background())
	assert.Equal(t, "up", rep.Status)
	assert.Equal(t, "up", rep.Checks["ok"].Status)

	r.Register("broken", func(context.Context) error { return errors.New("no route") })
	rep = r.Check(context.Background())
	assert.Equal(t, "down", rep.Status)
	assert.Equal(t, "no route", rep.Checks["broken"].Error)
}

func TestRegistryTimeout(t *testing.T) {
	r := NewRegistry(5 * time.Millisecond)
	r.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	rep := r.Check(context.Background())
	assert.Equal(t, "down", rep.Status)
	assert.Contains(t, rep.Checks["slow"].Error, "deadline exceeded")
}

func TestRegistryTimeoutIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	r := NewRegistry(10 * time.Millisecond)
	r.Register("stuck", func(context.Context) error {
		<-release
		return nil
	})
	r.Register("ok", func(context.Context) error { return nil })

	start := time.Now()
	rep := r.Check(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "down", rep.Status)
	assert.Contains(t, rep.Checks["stuck"].Error, "deadline exceeded")
	assert.Equal(t, "up", rep.Checks["ok"].Status)
}

func TestIndexCheckerAndHandler(t *testing.T) {
	e, err := engine.New(config.IndexConfig{CacheSize: 2}, nil, metrics.NewMetrics("rmq-test"))
	require.NoError(t, err)

	r := NewRegistry(0)
	r.Register("index", IndexChecker(e, "org"))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var rep Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "down", rep.Status)
	assert.Contains(t, rep.Checks["index"].Error, xerrors.ErrIndexNotFound.Message)

	_, err = e.Build(context.Background(), "org", engine.StaticSource{{Child: "root"}})
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNilDependencies(t *testing.T) {
	assert.Error(t, IndexChecker(nil)(context.Background()))
	assert.Error(t, Neo4jChecker(nil)(context.Background()))
}
