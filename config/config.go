// Package config 提供了统一的配置加载与管理能力。
// 基于 viper 加载 TOML 配置，支持环境变量覆盖、结构体校验与热加载。
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 全局顶级配置结构。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    toml:"server"`
	Log       LogConfig       `mapstructure:"log"       toml:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   toml:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"   toml:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" toml:"ratelimit"`
	Cache     CacheConfig     `mapstructure:"cache"     toml:"cache"`
	Engine    EngineConfig    `mapstructure:"engine"    toml:"engine"`
	Worker    WorkerConfig    `mapstructure:"worker"    toml:"worker"`
	Redis     RedisConfig     `mapstructure:"redis"     toml:"redis"`
	Snowflake SnowflakeConfig `mapstructure:"snowflake" toml:"snowflake"`
	Version   string          `mapstructure:"version"   toml:"version"`
}

// ServerConfig 定义服务器运行时的基础网络与环境参数。
type ServerConfig struct {
	Name        string `mapstructure:"name"        toml:"name"        validate:"required"`
	Environment string `mapstructure:"environment" toml:"environment" validate:"oneof=dev test prod"`
	HTTP        struct {
		Addr              string        `mapstructure:"addr"                toml:"addr"`
		Timeout           time.Duration `mapstructure:"timeout"             toml:"timeout"`
		ReadTimeout       time.Duration `mapstructure:"read_timeout"        toml:"read_timeout"`
		ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" toml:"read_header_timeout"`
		WriteTimeout      time.Duration `mapstructure:"write_timeout"       toml:"write_timeout"`
		IdleTimeout       time.Duration `mapstructure:"idle_timeout"        toml:"idle_timeout"`
		Port              int           `mapstructure:"port"                toml:"port"                validate:"required,min=1,max=65535"`
	} `mapstructure:"http" toml:"http"`
}

// LogConfig 定义日志输出、级别与切割策略。
type LogConfig struct {
	Level      string `mapstructure:"level"       toml:"level"`       // 日志级别。
	File       string `mapstructure:"file"        toml:"file"`        // 日志文件路径，为空则输出到 stdout。
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"`    // 单个日志文件最大尺寸 (MB)。
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"` // 保留旧日志文件的最大个数。
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"`     // 保留旧日志文件的最大天数。
	Compress   bool   `mapstructure:"compress"    toml:"compress"`    // 是否压缩旧日志。
}

// MetricsConfig 定义指标暴露参数。
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Port    string `mapstructure:"port"    toml:"port"` // 独立暴露端口，为空则挂载在主端口 /metrics。
}

// TracingConfig 定义分布式追踪参数。
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"       toml:"enabled"`
	ServiceName  string `mapstructure:"service_name"  toml:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" toml:"otlp_endpoint"`
}

// RateLimitConfig 定义 HTTP 边缘限流参数。
type RateLimitConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Mode    string `mapstructure:"mode"    toml:"mode" validate:"omitempty,oneof=local redis"` // local 令牌桶 / redis 滑动窗口。
	Rate    int    `mapstructure:"rate"    toml:"rate"`                                        // 每秒允许请求数。
	Burst   int    `mapstructure:"burst"   toml:"burst"`                                       // 突发容量（仅 local 模式）。
	Window  int    `mapstructure:"window"  toml:"window"`                                      // 窗口秒数（仅 redis 模式）。
}

// CacheConfig 定义查询结果本地缓存参数。
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" toml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"     toml:"ttl"`
	MaxMB   int           `mapstructure:"max_mb"  toml:"max_mb"`
}

// EngineConfig 定义聚合引擎的容量护栏。
type EngineConfig struct {
	MaxTables    int `mapstructure:"max_tables"     toml:"max_tables"`     // 可同时存在的表数量上限，0 表示不限制。
	MaxTableSize int `mapstructure:"max_table_size" toml:"max_table_size"` // 单表元素数量上限，0 表示不限制。
}

// WorkerConfig 定义异步批量更新的工作池参数。
type WorkerConfig struct {
	Size      int `mapstructure:"size"       toml:"size"`
	QueueSize int `mapstructure:"queue_size" toml:"queue_size"`
}

// RedisConfig 定义 Redis 连接参数（仅用于 redis 模式的边缘限流）。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"     toml:"addr"`
	Password string `mapstructure:"password" toml:"password"`
	DB       int    `mapstructure:"db"       toml:"db"`
}

// SnowflakeConfig 定义雪花算法 ID 生成器参数。
type SnowflakeConfig struct {
	Type      string `mapstructure:"type"       toml:"type"`       // snowflake / sonyflake。
	StartTime string `mapstructure:"start_time" toml:"start_time"` // 纪元起点，格式 2006-01-02。
	MachineID int64  `mapstructure:"machine_id" toml:"machine_id"`
}

// GetHTTPAddr 返回 HTTP 监听地址。
func (c *Config) GetHTTPAddr() string {
	if c.Server.HTTP.Addr != "" {
		return c.Server.HTTP.Addr
	}
	return fmt.Sprintf(":%d", c.Server.HTTP.Port)
}

var (
	vInstance = viper.New()
	onReload  []func(*Config)
	reloadMu  sync.Mutex
)

// RegisterReloadHook 注册配置热加载回调。
func RegisterReloadHook(hook func(*Config)) {
	reloadMu.Lock()
	defer reloadMu.Unlock()
	onReload = append(onReload, hook)
}

// Load 从指定路径加载 TOML 配置文件到 conf 中。
// 支持 APP_ 前缀的环境变量覆盖（层级以 _ 分隔），加载后做结构体校验，
// 并监听文件变化以实现热加载。
func Load(path string, conf *Config) error {
	vInstance.SetConfigFile(path)
	vInstance.SetConfigType("toml")

	vInstance.SetEnvPrefix("APP")
	vInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vInstance.AutomaticEnv()

	if err := vInstance.ReadInConfig(); err != nil {
		return fmt.Errorf("read config error: %w", err)
	}

	if err := vInstance.Unmarshal(conf); err != nil {
		return fmt.Errorf("unmarshal config error: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(conf); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	vInstance.WatchConfig()
	vInstance.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)
		const debounceTimeout = 500 * time.Millisecond
		time.Sleep(debounceTimeout)

		if unmarshalErr := vInstance.Unmarshal(conf); unmarshalErr != nil {
			slog.Error("reload config unmarshal failed", "error", unmarshalErr)
			return
		}

		if validateErr := validate.Struct(conf); validateErr != nil {
			slog.Error("reload config validation failed", "error", validateErr)
			return
		}
		slog.Info("config hot-reloaded and validated successfully")

		reloadMu.Lock()
		hooks := make([]func(*Config), len(onReload))
		copy(hooks, onReload)
		reloadMu.Unlock()
		for _, hook := range hooks {
			hook(conf)
		}
	})

	return nil
}

// GetViper 返回底层 viper 实例，供需要读取原始键值的场景使用。
func GetViper() *viper.Viper {
	return vInstance
}
