package graph

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v6/neo4j"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/rmq/config"
	"github.com/wyfcoding/rmq/engine"
	"github.com/wyfcoding/rmq/logging"
	"github.com/wyfcoding/rmq/metrics"
	"github.com/wyfcoding/rmq/retry"
	"github.com/wyfcoding/rmq/xerrors"
)

func record(child, parent any) *neo4j.Record {
	return &neo4j.Record{Keys: []string{"child", "parent"}, Values: []any{child, parent}}
}

func testClient(t *testing.T, cfg Config, run runFunc) *Client {
	t.Helper()
	logger := logging.NewFromConfig(logging.Config{Service: "rmq-test", Writer: io.Discard})
	return newClient(cfg, logger, metrics.NewMetrics("rmq-test"), run)
}

func staticRun(records ...*neo4j.Record) runFunc {
	return func(context.Context, string, map[string]any, string) (*neo4j.EagerResult, error) {
		return &neo4j.EagerResult{Keys: []string{"child", "parent"}, Records: records}, nil
	}
}

func TestEdgesFromRecords(t *testing.T) {
	edges, err := edgesFromRecords([]*neo4j.Record{
		record("0", nil),
		record("1", "0"),
		record(int64(2), int64(0)),
		record("3", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, []engine.Edge{
		{Child: "0"},
		{Child: "1", Parent: "0"},
		{Child: "2", Parent: "0"},
		{Child: "3"},
	}, edges)
}

func TestEdgesFromRecordsRejectsBadRows(t *testing.T) {
	cases := map[string]*neo4j.Record{
		"null child":     record(nil, "0"),
		"empty child":    record("", "0"),
		"float id":       record(1.5, "0"),
		"missing column": {Keys: []string{"child"}, Values: []any{"1"}},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := edgesFromRecords([]*neo4j.Record{rec})
			assert.ErrorIs(t, err, xerrors.ErrNotTree)
		})
	}
}

func TestTreeLoaderFeedsEngine(t *testing.T) {
	var gotCypher, gotDB string
	run := func(_ context.Context, cypher string, _ map[string]any, db string) (*neo4j.EagerResult, error) {
		gotCypher, gotDB = cypher, db
		return staticRun(record("0", nil), record("1", "0"), record("2", "0"), record("3", "1"))(context.Background(), cypher, nil, db)
	}
	client := testClient(t, Config{Neo4jConfig: config.Neo4jConfig{Database: "trees"}}, run)

	e, err := engine.New(config.IndexConfig{CacheSize: 4}, nil, metrics.NewMetrics("rmq-test"))
	require.NoError(t, err)

	_, err = e.Build(context.Background(), "org", NewTreeLoader(client, "", nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultTreeQuery, gotCypher)
	assert.Equal(t, "trees", gotDB)

	w, err := e.LCA(context.Background(), "org", "3", "2")
	require.NoError(t, err)
	assert.Equal(t, "0", w)
	assert.Equal(t, 1.0, testutil.ToFloat64(client.requestsTotal.WithLabelValues("trees", "query", "success")))
}

func TestClientWrapsDriverErrors(t *testing.T) {
	boom := errors.New("connection reset")
	client := testClient(t, Config{}, func(context.Context, string, map[string]any, string) (*neo4j.EagerResult, error) {
		return nil, boom
	})

	_, err := NewTreeLoader(client, "", nil).Edges(context.Background())
	assert.ErrorIs(t, err, xerrors.ErrSourceUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(client.requestsTotal.WithLabelValues("neo4j", "query", "error")))
}

func TestClientBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	cfg := Config{BreakerConfig: config.CircuitBreakerConfig{Enabled: true, Timeout: time.Minute}}
	client := testClient(t, cfg, func(context.Context, string, map[string]any, string) (*neo4j.EagerResult, error) {
		calls.Add(1)
		return nil, errors.New("unavailable")
	})

	for range 10 {
		_, err := client.ExecuteQuery(context.Background(), "RETURN 1", nil)
		require.Error(t, err)
	}
	// 默认 5 次请求、失败率 50% 即熔断。
	assert.Equal(t, int32(5), calls.Load())

	_, err := client.ExecuteQuery(context.Background(), "RETURN 1", nil)
	assert.ErrorIs(t, err, xerrors.ErrCircuitOpen)

	require.NoError(t, client.UpdateConfig(Config{}))
	_, err = client.ExecuteQuery(context.Background(), "RETURN 1", nil)
	assert.NotErrorIs(t, err, xerrors.ErrCircuitOpen)
	assert.Equal(t, int32(6), calls.Load())
}

func TestClientRateLimit(t *testing.T) {
	client := testClient(t, Config{RateLimit: 0.001, Burst: 1}, staticRun())

	_, err := client.ExecuteQuery(context.Background(), "RETURN 1", nil)
	require.NoError(t, err)
	_, err = client.ExecuteQuery(context.Background(), "RETURN 1", nil)
	assert.ErrorIs(t, err, ErrRateLimit)
	xe, ok := xerrors.FromError(err)
	require.True(t, ok)
	assert.Equal(t, "neo4j", xe.Context["database"])
	assert.Equal(t, 1.0, testutil.ToFloat64(client.requestsTotal.WithLabelValues("neo4j", "query", "rate_limited")))
}

func TestClientConcurrencyLimit(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	client := testClient(t, Config{Neo4jConfig: config.Neo4jConfig{MaxConcurrency: 1}},
		func(context.Context, string, map[string]any, string) (*neo4j.EagerResult, error) {
			close(started)
			<-release
			return &neo4j.EagerResult{}, nil
		})

	done := make(chan error, 1)
	go func() {
		_, err := client.ExecuteQuery(context.Background(), "RETURN 1", nil)
		done <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := client.ExecuteQuery(ctx, "RETURN 1", nil)
	assert.ErrorIs(t, err, ErrConcurrencyLimit)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)
}

func TestSlowQueryCounted(t *testing.T) {
	client := testClient(t, Config{Neo4jConfig: config.Neo4jConfig{SlowThreshold: time.Nanosecond}},
		func(context.Context, string, map[string]any, string) (*neo4j.EagerResult, error) {
			time.Sleep(time.Millisecond)
			return &neo4j.EagerResult{}, nil
		})

	_, err := client.ExecuteQuery(context.Background(), "RETURN 1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(client.slowRequests.WithLabelValues("neo4j", "query")))
	require.NoError(t, client.Close(context.Background()))
}

func TestTreeLoaderRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, Config{}, func(context.Context, string, map[string]any, string) (*neo4j.EagerResult, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("leader switch")
		}
		return &neo4j.EagerResult{Records: []*neo4j.Record{record("r", nil)}}, nil
	})

	loader := NewTreeLoader(client, "MATCH (n) RETURN n.id AS child, null AS parent", nil).
		WithRetry(retry.Config{MaxRetries: 3, InitialBackoff: time.Millisecond, Multiplier: 2})
	edges, err := loader.Edges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []engine.Edge{{Child: "r"}}, edges)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTreeLoaderDoesNotRetryOpenCircuit(t *testing.T) {
	var calls atomic.Int32
	cfg := Config{BreakerConfig: config.CircuitBreakerConfig{Enabled: true, Timeout: time.Minute}}
	client := testClient(t, cfg, func(context.Context, string, map[string]any, string) (*neo4j.EagerResult, error) {
		calls.Add(1)
		return nil, errors.New("down")
	})

	loader := NewTreeLoader(client, "", nil).
		WithRetry(retry.Config{MaxRetries: 20, InitialBackoff: time.Microsecond, Multiplier: 1})
	_, err := loader.Edges(context.Background())
	assert.ErrorIs(t, err, xerrors.ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load())
}

type fakeDriver struct {
	neo4j.Driver
	closed atomic.Bool
}

func (d *fakeDriver) Close(context.Context) error {
	d.closed.Store(true)
	return nil
}

func TestUpdateConfigReconnectsOnlyOnConnectionChange(t *testing.T) {
	base := Config{Neo4jConfig: config.Neo4jConfig{URI: "neo4j://a:7687", Username: "neo4j", Password: "x"}}
	client := testClient(t, base, staticRun())
	first := &fakeDriver{}
	client.driver = first

	var dials atomic.Int32
	var dialed []*fakeDriver
	client.dial = func(Config) (neo4j.Driver, error) {
		dials.Add(1)
		d := &fakeDriver{}
		dialed = append(dialed, d)
		return d, nil
	}

	same := base
	same.Database = "trees"
	same.MaxConcurrency = 2
	require.NoError(t, client.UpdateConfig(same))
	assert.Equal(t, int32(0), dials.Load())
	assert.False(t, first.closed.Load())
	assert.Equal(t, "trees", client.dbName)

	moved := same
	moved.URI = "neo4j://b:7687"
	require.NoError(t, client.UpdateConfig(moved))
	assert.Equal(t, int32(1), dials.Load())
	assert.True(t, first.closed.Load())
	assert.Same(t, dialed[0], client.driver)

	require.NoError(t, client.UpdateConfig(moved))
	assert.Equal(t, int32(1), dials.Load(), "unchanged connection after reconnect")

	rotated := moved
	rotated.Password = "y"
	require.NoError(t, client.UpdateConfig(rotated))
	assert.Equal(t, int32(2), dials.Load())
	assert.True(t, dialed[0].closed.Load())
}

func TestUpdateConfigKeepsDriverOnDialError(t *testing.T) {
	client := testClient(t, Config{Neo4jConfig: config.Neo4jConfig{URI: "neo4j://a:7687"}}, staticRun())
	first := &fakeDriver{}
	client.driver = first
	client.dial = func(Config) (neo4j.Driver, error) { return nil, errors.New("unreachable") }

	err := client.UpdateConfig(Config{Neo4jConfig: config.Neo4jConfig{URI: "neo4j://b:7687"}})
	require.Error(t, err)
	assert.Same(t, first, client.driver)
	assert.False(t, first.closed.Load())
}
