package metrics

import "github.com/prometheus/client_golang/prometheus"

// IndexMetrics 汇集 LCA/RMQ 索引注册中心的标准指标。
type IndexMetrics struct {
	BuildsTotal   *prometheus.CounterVec   // 构建次数 (维度: status)
	BuildDuration *prometheus.HistogramVec // 构建耗时 (维度: layout)
	TourLength    *prometheus.GaugeVec     // 每个索引的欧拉序列长度 (维度: index)
	TableEntries  *prometheus.GaugeVec     // 每个索引稀疏表保存的下标数 (维度: index)
	QueriesTotal  *prometheus.CounterVec   // 查询次数 (维度: op, status)
	Evictions     prometheus.Counter       // LRU 淘汰次数
}

// NewIndexMetrics 在 m 上注册索引相关指标。
func NewIndexMetrics(m *Metrics) *IndexMetrics {
	return &IndexMetrics{
		BuildsTotal: m.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rmq",
			Subsystem: "index",
			Name:      "builds_total",
			Help:      "Number of index builds by outcome",
		}, []string{"status"}),
		BuildDuration: m.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rmq",
			Subsystem: "index",
			Name:      "build_duration_seconds",
			Help:      "Index build latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"layout"}),
		TourLength: m.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rmq",
			Subsystem: "index",
			Name:      "tour_length",
			Help:      "Euler tour length of each loaded index",
		}, []string{"index"}),
		TableEntries: m.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rmq",
			Subsystem: "index",
			Name:      "table_entries",
			Help:      "Sparse table entries held by each loaded index",
		}, []string{"index"}),
		QueriesTotal: m.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rmq",
			Subsystem: "index",
			Name:      "queries_total",
			Help:      "Number of index queries by operation and outcome",
		}, []string{"op", "status"}),
		Evictions: m.NewCounter(prometheus.CounterOpts{
			Namespace: "rmq",
			Subsystem: "index",
			Name:      "evictions_total",
			Help:      "Number of indexes evicted from the registry",
		}),
	}
}
