package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"wisefido-heartbeat/internal/common/config"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig 配置非法
var ErrInvalidConfig = errors.New("invalid config")

// 文件输出格式
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// 键值/数据库/消息类输出
const (
	SinkRedis       = "redis"
	SinkRedisStream = "redis-stream"
	SinkSQLite      = "sqlite"
	SinkPostgres    = "postgres"
	SinkDynamoDB    = "dynamodb"
	SinkClickHouse  = "clickhouse"
	SinkKafka       = "kafka"
	SinkMQTT        = "mqtt"
)

// KnownSinks 可通过 -sinks 选择的输出
var KnownSinks = []string{
	SinkRedis, SinkRedisStream, SinkSQLite, SinkPostgres,
	SinkDynamoDB, SinkClickHouse, SinkKafka, SinkMQTT,
}

// Config 心率生成与看板服务配置
// 优先级：默认值 < YAML 文件 < 环境变量 < 命令行参数
type Config struct {
	ServiceName string `yaml:"service_name"`

	Generator struct {
		Input    string  `yaml:"input"`    // 用户表路径（csv/json/xlsx）
		Interval int     `yaml:"interval"` // 采样间隔（秒）
		Days     int     `yaml:"days"`     // 历史数据天数
		Realtime bool    `yaml:"realtime"`
		Risk     float64 `yaml:"risk"` // 70 岁以上用户中的高风险比例
		Seed     int64   `yaml:"seed"` // 0 表示按时间取种子
	} `yaml:"generator"`

	Output struct {
		Dir     string   `yaml:"dir"`
		Formats []string `yaml:"formats"` // csv / json / xlsx
	} `yaml:"output"`

	// Sinks 额外启用的输出（见 KnownSinks）
	Sinks []string `yaml:"sinks"`

	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`

	Stream struct {
		Name   string `yaml:"name"`
		MaxLen int64  `yaml:"max_len"`
	} `yaml:"stream"`

	MQTTTopicPrefix string `yaml:"mqtt_topic_prefix"`
	RedisTTL        int    `yaml:"redis_ttl"` // 秒，0 不过期

	Database   config.DatabaseConfig   `yaml:"database"`
	Redis      config.RedisConfig      `yaml:"redis"`
	MQTT       config.MQTTConfig       `yaml:"mqtt"`
	Kafka      config.KafkaConfig      `yaml:"kafka"`
	DynamoDB   config.DynamoDBConfig   `yaml:"dynamodb"`
	ClickHouse config.ClickHouseConfig `yaml:"clickhouse"`

	API struct {
		Enabled          bool `yaml:"enabled"`
		config.APIConfig `yaml:",inline"`
	} `yaml:"api"`

	Viewer struct {
		HTTPAddr        string `yaml:"http_addr"`
		Source          string `yaml:"source"`           // redis / sqlite / postgres
		RefreshInterval int    `yaml:"refresh_interval"` // 秒
		CacheTTL        int    `yaml:"cache_ttl"`        // 秒
		MaxSamples      int    `yaml:"max_samples"`      // 每个用户缓存上限
	} `yaml:"viewer"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default 默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.ServiceName = "wisefido-heartbeat"

	cfg.Generator.Interval = 30
	cfg.Generator.Days = 1
	cfg.Generator.Risk = 0.15

	cfg.Output.Dir = "heart_rate_data"
	cfg.Output.Formats = []string{FormatCSV, FormatJSON}

	cfg.SQLite.Path = "heart_rate_data.db"
	cfg.Stream.Name = "heartbeat:stream"
	cfg.Stream.MaxLen = 100000
	cfg.MQTTTopicPrefix = "heartbeat"

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "owlrd"
	cfg.Database.SSLMode = "disable"

	cfg.Redis.Addr = "localhost:6379"

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "wisefido-heartbeat"
	cfg.MQTT.QoS = 1

	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.Topic = "heartbeat.samples"

	cfg.DynamoDB.Region = "us-east-1"
	cfg.DynamoDB.Table = "heatbeat-record-table"

	cfg.ClickHouse.DSN = "clickhouse://default:@localhost:9000/default"
	cfg.ClickHouse.Table = "heartbeat_records"

	cfg.API.Timeout = 30
	cfg.API.Retries = 3

	cfg.Viewer.HTTPAddr = ":8090"
	cfg.Viewer.Source = SinkRedis
	cfg.Viewer.RefreshInterval = 30
	cfg.Viewer.CacheTTL = 600
	cfg.Viewer.MaxSamples = 5000

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Load 加载配置：默认值，path 非空时叠加 YAML 文件，再叠加环境变量
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		if err := decodeYAML(f, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServiceName = getEnv("SERVICE_NAME", c.ServiceName)

	c.Generator.Input = getEnv("HEARTBEAT_INPUT", c.Generator.Input)
	c.Generator.Interval = parseInt(getEnv("HEARTBEAT_INTERVAL", ""), c.Generator.Interval)
	c.Generator.Days = parseInt(getEnv("HEARTBEAT_DAYS", ""), c.Generator.Days)
	c.Generator.Realtime = parseBool(getEnv("HEARTBEAT_REALTIME", ""), c.Generator.Realtime)
	c.Generator.Risk = parseFloat(getEnv("HEARTBEAT_RISK", ""), c.Generator.Risk)
	c.Generator.Seed = int64(parseInt(getEnv("HEARTBEAT_SEED", ""), int(c.Generator.Seed)))

	c.Output.Dir = getEnv("HEARTBEAT_OUTPUT_DIR", c.Output.Dir)
	if v := getEnv("HEARTBEAT_FORMAT", ""); v != "" {
		c.Output.Formats = ParseFormats(v)
	}
	if v := getEnv("HEARTBEAT_SINKS", ""); v != "" {
		c.Sinks = config.SplitList(v)
	}

	c.SQLite.Path = getEnv("SQLITE_PATH", c.SQLite.Path)
	c.Stream.Name = getEnv("HEARTBEAT_STREAM", c.Stream.Name)
	c.MQTTTopicPrefix = getEnv("MQTT_TOPIC_PREFIX", c.MQTTTopicPrefix)
	c.RedisTTL = parseInt(getEnv("HEARTBEAT_REDIS_TTL", ""), c.RedisTTL)

	c.Database.LoadFromEnv("DB")
	c.Redis.LoadFromEnv("REDIS")
	c.MQTT.LoadFromEnv("MQTT")
	c.Kafka.LoadFromEnv("KAFKA")
	c.DynamoDB.LoadFromEnv("DYNAMODB")
	c.ClickHouse.LoadFromEnv("CLICKHOUSE")
	c.API.LoadFromEnv("HEARTBEAT_API")
	c.API.Enabled = parseBool(getEnv("HEARTBEAT_API_ENABLED", ""), c.API.Enabled || c.API.Endpoint != "")

	c.Viewer.HTTPAddr = getEnv("HTTP_ADDR", c.Viewer.HTTPAddr)
	c.Viewer.Source = getEnv("VIEWER_SOURCE", c.Viewer.Source)
	c.Viewer.RefreshInterval = parseInt(getEnv("VIEWER_REFRESH_INTERVAL", ""), c.Viewer.RefreshInterval)
	c.Viewer.CacheTTL = parseInt(getEnv("VIEWER_CACHE_TTL", ""), c.Viewer.CacheTTL)
	c.Viewer.MaxSamples = parseInt(getEnv("VIEWER_MAX_SAMPLES", ""), c.Viewer.MaxSamples)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// FromArgs 解析生成器命令行参数并加载配置
func FromArgs(args []string, stderr io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("wisefido-heartbeat", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", getEnv("HEARTBEAT_CONFIG", ""), "YAML 配置文件路径")
	input := fs.String("input", "", "用户数据文件路径（CSV / JSON / XLSX）")
	interval := fs.Int("interval", 30, "采样间隔（秒）")
	days := fs.Int("days", 1, "生成的历史数据天数")
	realtime := fs.Bool("realtime", false, "实时数据生成模式")
	risk := fs.Float64("risk", 0.15, "70 岁以上用户中包含风险事件的比例（0-1）")
	output := fs.String("output", "heart_rate_data", "输出目录")
	format := fs.String("format", "both", "文件输出格式：csv, json, xlsx, both, none")
	sinks := fs.String("sinks", "", "额外输出，逗号分隔："+strings.Join(KnownSinks, ", "))
	api := fs.Bool("api", false, "启用 HTTP API 上报")
	noAPI := fs.Bool("no-api", false, "禁用 HTTP API 上报")
	table := fs.String("table", "heatbeat-record-table", "DynamoDB 表名")
	seed := fs.Int64("seed", 0, "随机种子（0 表示按时间）")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := Load(*configPath)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["input"] {
		cfg.Generator.Input = *input
	}
	if set["interval"] {
		cfg.Generator.Interval = *interval
	}
	if set["days"] {
		cfg.Generator.Days = *days
	}
	if set["realtime"] {
		cfg.Generator.Realtime = *realtime
	}
	if set["risk"] {
		cfg.Generator.Risk = *risk
	}
	if set["output"] {
		cfg.Output.Dir = *output
	}
	if set["format"] {
		cfg.Output.Formats = ParseFormats(*format)
	}
	if set["sinks"] {
		cfg.Sinks = config.SplitList(*sinks)
	}
	if set["api"] {
		cfg.API.Enabled = *api
	}
	if set["no-api"] && *noAPI {
		cfg.API.Enabled = false
	}
	if set["table"] {
		cfg.DynamoDB.Table = *table
	}
	if set["seed"] {
		cfg.Generator.Seed = *seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseFormats 解析 -format：both = csv+json，none = 不写文件
func ParseFormats(v string) []string {
	var out []string
	for _, f := range config.SplitList(strings.ToLower(v)) {
		switch f {
		case "both":
			out = append(out, FormatCSV, FormatJSON)
		case "none":
		default:
			out = append(out, f)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// Validate 校验生成器配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Generator.Input) == "" {
		return fmt.Errorf("%w: input is required", ErrInvalidConfig)
	}
	if c.Generator.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidConfig, c.Generator.Interval)
	}
	if c.Generator.Days <= 0 {
		return fmt.Errorf("%w: days must be positive, got %d", ErrInvalidConfig, c.Generator.Days)
	}
	if math.IsNaN(c.Generator.Risk) || c.Generator.Risk < 0 || c.Generator.Risk > 1 {
		return fmt.Errorf("%w: risk must be within [0, 1], got %g", ErrInvalidConfig, c.Generator.Risk)
	}

	for _, f := range c.Output.Formats {
		switch f {
		case FormatCSV, FormatJSON, FormatXLSX:
		default:
			return fmt.Errorf("%w: unknown output format %q", ErrInvalidConfig, f)
		}
	}

	for _, s := range c.Sinks {
		if !isKnownSink(s) {
			return fmt.Errorf("%w: unknown sink %q", ErrInvalidConfig, s)
		}
	}

	if c.API.Enabled && c.API.Endpoint == "" {
		return fmt.Errorf("%w: api enabled but HEARTBEAT_API_ENDPOINT is empty", ErrInvalidConfig)
	}
	return nil
}

// ValidateViewer 校验看板配置
func (c *Config) ValidateViewer() error {
	if strings.TrimSpace(c.Viewer.HTTPAddr) == "" {
		return fmt.Errorf("%w: viewer http addr is required", ErrInvalidConfig)
	}
	switch c.Viewer.Source {
	case SinkRedis, SinkSQLite, SinkPostgres:
	default:
		return fmt.Errorf("%w: unknown viewer source %q", ErrInvalidConfig, c.Viewer.Source)
	}
	if c.Viewer.RefreshInterval <= 0 {
		return fmt.Errorf("%w: viewer refresh interval must be positive, got %d", ErrInvalidConfig, c.Viewer.RefreshInterval)
	}
	if c.Viewer.CacheTTL < 0 {
		return fmt.Errorf("%w: viewer cache ttl must not be negative, got %d", ErrInvalidConfig, c.Viewer.CacheTTL)
	}
	if c.Viewer.MaxSamples < 0 {
		return fmt.Errorf("%w: viewer max samples must not be negative, got %d", ErrInvalidConfig, c.Viewer.MaxSamples)
	}
	return nil
}

// HasSink 是否启用了某个输出
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// RefreshInterval 看板刷新间隔
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Viewer.RefreshInterval) * time.Second
}

// CacheTTL 看板缓存过期时间
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Viewer.CacheTTL) * time.Second
}

func isKnownSink(name string) bool {
	for _, s := range KnownSinks {
		if s == name {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, defaultValue int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return v
	}
	return defaultValue
}

func parseFloat(s string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return v
	}
	return defaultValue
}

func parseBool(s string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
		return v
	}
	return defaultValue
}
