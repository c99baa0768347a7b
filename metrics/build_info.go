package metrics

import (
	"runtime"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterBuildInfo 注册 rmq_build_info 指标，同一个 Metrics 只注册一次。
// version 为空时取主模块版本。
func (m *Metrics) RegisterBuildInfo(serviceName, version string) {
	if m == nil {
		return
	}
	m.buildOnce.Do(func() {
		if serviceName == "" {
			serviceName = "unknown"
		}
		if version == "" {
			version = moduleVersion()
		}

		m.BuildInfo = m.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rmq",
			Name:      "build_info",
			Help:      "Build information of the running binary.",
		}, []string{"service", "version", "go_version"})
		m.BuildInfo.WithLabelValues(serviceName, version, runtime.Version()).Set(1)
	})
}

func moduleVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "unknown"
}
