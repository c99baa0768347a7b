// Package config 提供了统一的配置加载与管理能力.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/wyfcoding/rmq/logging"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 全局顶级配置结构.
type Config struct {
	Version        string               `mapstructure:"version"        toml:"version"`
	Log            LogConfig            `mapstructure:"log"            toml:"log"`
	Metrics        MetricsConfig        `mapstructure:"metrics"        toml:"metrics"`
	Tracing        TracingConfig        `mapstructure:"tracing"        toml:"tracing"`
	Index          IndexConfig          `mapstructure:"index"          toml:"index"`
	Neo4j          Neo4jConfig          `mapstructure:"neo4j"          toml:"neo4j"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitbreaker" toml:"circuitbreaker"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level      string `mapstructure:"level"       toml:"level"       validate:"omitempty,oneof=debug info warn error"`
	File       string `mapstructure:"file"        toml:"file"`
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"`
	Compress   bool   `mapstructure:"compress"    toml:"compress"`
}

// MetricsConfig 普罗米修斯监控指标暴露配置.
type MetricsConfig struct {
	Port    string `mapstructure:"port"    toml:"port"`
	Path    string `mapstructure:"path"    toml:"path"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// TracingConfig 链路追踪配置.
type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"  toml:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint" validate:"required_if=Enabled true"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" validate:"gte=0,lte=1"`
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"`
}

// IndexConfig 定义 RMQ/LCA 索引的构建参数.
type IndexConfig struct {
	Layout            string        `mapstructure:"layout"             toml:"layout"             validate:"omitempty,oneof=grid flat"`
	Workers           int           `mapstructure:"workers"            toml:"workers"            validate:"gte=0"`
	ParallelThreshold int           `mapstructure:"parallel_threshold" toml:"parallel_threshold" validate:"gte=0"`
	CacheSize         int           `mapstructure:"cache_size"         toml:"cache_size"         validate:"gte=1"`
	SlowBuild         time.Duration `mapstructure:"slow_build"         toml:"slow_build"`
}

// Neo4jConfig 定义 Neo4j 图数据库的连接参数.
type Neo4jConfig struct {
	URI            string        `mapstructure:"uri"             toml:"uri"`
	Username       string        `mapstructure:"username"        toml:"username"`
	Password       string        `mapstructure:"password"        toml:"password"`
	Database       string        `mapstructure:"database"        toml:"database"`
	MaxConcurrency int           `mapstructure:"max_concurrency" toml:"max_concurrency" validate:"gte=0"`
	SlowThreshold  time.Duration `mapstructure:"slow_threshold"  toml:"slow_threshold"`
}

// CircuitBreakerConfig 熔断器配置.
type CircuitBreakerConfig struct {
	Interval    time.Duration `mapstructure:"interval"     toml:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"      toml:"timeout"`
	MaxRequests uint32        `mapstructure:"max_requests" toml:"max_requests"`
	Enabled     bool          `mapstructure:"enabled"      toml:"enabled"`
}

var (
	mu        sync.RWMutex
	vInstance = viper.New()
	onReload  []func(*Config)
)

// RegisterReloadHook 注册配置热更新回调。
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	mu.Lock()
	onReload = append(onReload, hook)
	mu.Unlock()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("index.layout", "grid")
	v.SetDefault("index.workers", 1)
	v.SetDefault("index.parallel_threshold", 1<<16)
	v.SetDefault("index.cache_size", 64)
	v.SetDefault("index.slow_build", time.Second)
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("tracing.sampler_ratio", 1.0)
}

// reloadDebounce 为文件变化后等待写入完成的时间。
var reloadDebounce = 500 * time.Millisecond

// Load 读取 TOML 配置文件，叠加 APP_ 前缀的环境变量，校验后开始监听文件变化。
// conf 必须是指向结构体的非 nil 指针。热更新写入 conf 时持有包级锁，
// 与热更新并发读取 conf 的调用方应使用 Snapshot。
func Load(path string, conf any) error {
	rv := reflect.ValueOf(conf)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config target must be a non-nil struct pointer, got %T", conf)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config error: %w", err)
	}

	r := &reloader{v: v, conf: conf, validate: validator.New()}
	fresh, err := r.decode()
	if err != nil {
		return err
	}
	r.commit(fresh)
	PrintWithMask(fresh)

	mu.Lock()
	vInstance = v
	mu.Unlock()

	v.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)
		time.Sleep(reloadDebounce)

		if err := r.reload(); err != nil {
			slog.Error("config reload rejected, keeping previous config", "error", err)
		}
	})
	v.WatchConfig()

	return nil
}

// Snapshot 在包级读锁下复制 conf，避免与热更新写入竞争。
func Snapshot[T any](conf *T) T {
	mu.RLock()
	defer mu.RUnlock()
	return *conf
}

// reloader 把 viper 中的最新配置解码到新值，校验通过后才替换调用方持有的配置。
type reloader struct {
	v        *viper.Viper
	conf     any
	validate *validator.Validate
}

func (r *reloader) decode() (any, error) {
	fresh := reflect.New(reflect.TypeOf(r.conf).Elem()).Interface()
	if err := r.v.Unmarshal(fresh); err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := r.validate.Struct(fresh); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return fresh, nil
}

func (r *reloader) commit(fresh any) {
	mu.Lock()
	reflect.ValueOf(r.conf).Elem().Set(reflect.ValueOf(fresh).Elem())
	mu.Unlock()
	applyLogLevel(fresh)
}

func (r *reloader) reload() error {
	fresh, err := r.decode()
	if err != nil {
		return err
	}
	r.commit(fresh)
	slog.Info("config hot-reloaded and validated successfully")

	// 回调拿到的是独立副本，不与后续热更新共享内存。
	if cfg, ok := fresh.(*Config); ok {
		mu.RLock()
		hooks := append([]func(*Config){}, onReload...)
		mu.RUnlock()
		for _, hook := range hooks {
			hook(cfg)
		}
	}
	return nil
}

// applyLogLevel 如果配置中有日志级别，自动更新全局日志级别。
func applyLogLevel(conf any) {
	if c, ok := conf.(*Config); ok {
		logging.SetLevel(c.Log.Level)
		return
	}

	val := reflect.ValueOf(conf)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return
	}
	logField := val.FieldByName("Log")
	if logField.IsValid() && logField.Kind() == reflect.Struct {
		levelField := logField.FieldByName("Level")
		if levelField.IsValid() && levelField.Kind() == reflect.String {
			logging.SetLevel(levelField.String())
		}
	}
}

// PrintWithMask 以 Debug 级别脱敏打印当前配置.
func PrintWithMask(conf any) {
	data, err := json.Marshal(conf)
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)

		return
	}

	var configMap map[string]any
	if unmarshalErr := json.Unmarshal(data, &configMap); unmarshalErr != nil {
		slog.Error("failed to unmarshal config for masking", "error", unmarshalErr)

		return
	}

	mask(configMap)

	maskedJSON, marshalErr := json.MarshalIndent(configMap, "  ", "  ")
	if marshalErr != nil {
		slog.Error("failed to marshal masked config", "error", marshalErr)

		return
	}

	slog.Debug("current effective configuration", "config", string(maskedJSON))
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "dsn", "key", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)

			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"

				break
			}
		}
	}
}

// GetViper 返回最近一次 Load 使用的 Viper 实例.
func GetViper() *viper.Viper {
	mu.RLock()
	defer mu.RUnlock()
	return vInstance
}
