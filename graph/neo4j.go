// Package graph 提供 Neo4j 图数据库的统一接入与治理能力，并从图中加载树结构供索引构建使用。
// 客户端在每次请求上叠加并发保护、限流、熔断、慢查询监控与链路追踪。
package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v6/neo4j"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/wyfcoding/rmq/breaker"
	"github.com/wyfcoding/rmq/config"
	"github.com/wyfcoding/rmq/logging"
	"github.com/wyfcoding/rmq/metrics"
	"github.com/wyfcoding/rmq/tracing"
	"github.com/wyfcoding/rmq/xerrors"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	// ErrRateLimit 表示触发图数据库限流。
	ErrRateLimit = xerrors.New(xerrors.ErrUnavailable, 503201, "graph rate limit exceeded", "", nil)
	// ErrConcurrencyLimit 表示等待并发配额时上下文结束。
	ErrConcurrencyLimit = xerrors.New(xerrors.ErrUnavailable, 503202, "graph concurrency limit exceeded", "", nil)
)

const (
	defaultRateLimit = 1500
	defaultBurst     = 150
)

// Config 定义图数据库客户端的初始化参数。
type Config struct {
	config.Neo4jConfig
	BreakerConfig config.CircuitBreakerConfig
	ServiceName   string
	RateLimit     rate.Limit
	Burst         int
}

// runFunc 执行一条 Cypher 语句，抽象出来便于替换驱动。
type runFunc func(ctx context.Context, cypher string, params map[string]any, database string) (*neo4j.EagerResult, error)

// Client 封装 Neo4j 客户端，提供统一治理能力。
type Client struct {
	mu            sync.RWMutex
	driver        neo4j.Driver
	dial          func(Config) (neo4j.Driver, error)
	conn          config.Neo4jConfig // 当前驱动使用的连接参数
	run           runFunc
	dbName        string
	limiter       *rate.Limiter
	concurrency   *semaphore.Weighted
	slowThreshold time.Duration

	logger          *logging.Logger
	breaker         *breaker.DynamicBreaker
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	slowRequests    *prometheus.CounterVec
}

// NewClient 连接 Neo4j 并创建具备治理能力的客户端。
func NewClient(cfg Config, logger *logging.Logger, m *metrics.Metrics) (*Client, error) {
	driver, err := newNeo4jDriver(cfg)
	if err != nil {
		return nil, err
	}
	c := newClient(cfg, logger, m, runWithDriver(driver))
	c.driver = driver
	c.logger.Info("graph client initialized", "uri", cfg.URI, "database", c.dbName)
	return c, nil
}

func newClient(cfg Config, logger *logging.Logger, m *metrics.Metrics, run runFunc) *Client {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "graph"
	}
	if logger == nil {
		logger = logging.Default()
	}
	if m == nil {
		m = metrics.NewMetrics(serviceName)
	}

	c := &Client{
		run:    run,
		dial:   newNeo4jDriver,
		conn:   cfg.Neo4jConfig,
		logger: logger.Named("neo4j"),
		breaker: breaker.NewDynamicBreaker("neo4j-"+serviceName, cfg.BreakerConfig,
			breaker.StateGauge(m), 0, 0),
		requestsTotal: m.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rmq",
			Subsystem: "neo4j",
			Name:      "requests_total",
			Help:      "Neo4j client request count",
		}, []string{"database", "op", "status"}),
		requestDuration: m.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rmq",
			Subsystem: "neo4j",
			Name:      "request_duration_seconds",
			Help:      "Neo4j client request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "op"}),
		slowRequests: m.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rmq",
			Subsystem: "neo4j",
			Name:      "slow_requests_total",
			Help:      "Neo4j slow request count",
		}, []string{"database", "op"}),
	}
	c.applyLimits(cfg)
	return c
}

// applyLimits 按配置重建限流器、并发信号量与慢查询阈值。
func (c *Client) applyLimits(cfg Config) {
	limit, burst := cfg.RateLimit, cfg.Burst
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	var sem *semaphore.Weighted
	if cfg.MaxConcurrency > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxConcurrency))
	}
	dbName := cfg.Database
	if dbName == "" {
		dbName = "neo4j"
	}

	c.mu.Lock()
	c.limiter = rate.NewLimiter(limit, burst)
	c.concurrency = sem
	c.slowThreshold = cfg.SlowThreshold
	c.dbName = dbName
	c.mu.Unlock()
}

// Close 优雅关闭图数据库连接。
func (c *Client) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	driver := c.driver
	c.mu.RUnlock()
	if driver == nil {
		return nil
	}
	return driver.Close(ctx)
}

// UpdateConfig 使用最新配置刷新熔断与限流参数。
// 只有 URI、用户名或密码变化时才重建驱动，数据库名随限流参数直接生效。
func (c *Client) UpdateConfig(cfg Config) error {
	c.breaker.Update(cfg.BreakerConfig)
	c.applyLimits(cfg)

	c.mu.RLock()
	hasDriver := c.driver != nil
	reconnect := cfg.URI != c.conn.URI || cfg.Username != c.conn.Username || cfg.Password != c.conn.Password
	dial := c.dial
	c.mu.RUnlock()
	if !hasDriver || cfg.URI == "" || !reconnect {
		return nil
	}

	driver, err := dial(cfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	oldDriver := c.driver
	c.driver = driver
	c.conn = cfg.Neo4jConfig
	c.run = runWithDriver(driver)
	c.mu.Unlock()

	if oldDriver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = oldDriver.Close(ctx)
	}

	c.logger.Info("neo4j client reconnected", "uri", cfg.URI)
	return nil
}

// RegisterReloadHook 注册 Neo4j 客户端热更新回调。
func RegisterReloadHook(client *Client, base Config) {
	if client == nil {
		return
	}
	config.RegisterReloadHook(func(updated *config.Config) {
		next := base
		next.Neo4jConfig = updated.Neo4j
		next.BreakerConfig = updated.CircuitBreaker
		if err := client.UpdateConfig(next); err != nil {
			client.logger.Error("neo4j client reload failed", "error", err)
		}
	})
}

// ExecuteQuery 执行单条 Cypher 查询。
func (c *Client) ExecuteQuery(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	c.mu.RLock()
	run, dbName, limiter, sem, slow := c.run, c.dbName, c.limiter, c.concurrency, c.slowThreshold
	c.mu.RUnlock()

	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			c.record(dbName, "query", "concurrency_limited", 0)
			return nil, ErrConcurrencyLimit.Derive("%s", dbName).WithContext("database", dbName).WithCause(err)
		}
		defer sem.Release(1)
	}
	if limiter != nil && !limiter.Allow() {
		c.record(dbName, "query", "rate_limited", 0)
		return nil, ErrRateLimit.Derive("%s", dbName).WithContext("database", dbName)
	}

	start := time.Now()
	res, err := breaker.ExecuteTyped(c.breaker.Current(), func() (*neo4j.EagerResult, error) {
		execCtx, span := tracing.StartSpan(ctx, "Neo4j.query")
		defer span.End()

		tracing.AddTag(execCtx, "db.system", "neo4j")
		tracing.AddTag(execCtx, "db.name", dbName)
		tracing.AddTag(execCtx, "db.statement", cypher)

		r, runErr := run(execCtx, cypher, params, dbName)
		if runErr != nil {
			tracing.SetError(execCtx, runErr)
		}
		return r, runErr
	})

	duration := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
	}
	c.record(dbName, "query", status, duration)
	c.checkSlow(ctx, dbName, "query", cypher, duration, slow)

	if err != nil {
		return nil, xerrors.ErrSourceUnavailable.Derive("neo4j query on %s", dbName).WithContext("database", dbName).WithCause(err)
	}
	return res, nil
}

func (c *Client) record(dbName, op, status string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(dbName, op, status).Inc()
	if duration > 0 {
		c.requestDuration.WithLabelValues(dbName, op).Observe(duration.Seconds())
	}
}

func (c *Client) checkSlow(ctx context.Context, dbName, op, statement string, duration, threshold time.Duration) {
	if threshold <= 0 || duration < threshold {
		return
	}
	c.slowRequests.WithLabelValues(dbName, op).Inc()
	c.logger.WarnContext(ctx, "neo4j slow query", "op", op, "duration", duration, "statement", statement)
}

func runWithDriver(driver neo4j.Driver) runFunc {
	return func(ctx context.Context, cypher string, params map[string]any, database string) (*neo4j.EagerResult, error) {
		return neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(database), neo4j.ExecuteQueryWithReadersRouting())
	}
}

func newNeo4jDriver(cfg Config) (neo4j.Driver, error) {
	driver, err := neo4j.NewDriver(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	return driver, nil
}
