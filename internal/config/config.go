package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"temp-dashboard/common/config"

	"github.com/joho/godotenv"
)

// 支持的后端
const (
	BackendFirebase = "firebase"
	BackendRedis    = "redis"
	BackendMQTT     = "mqtt"
	BackendPostgres = "postgres"
)

// Config 温度看板配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig
	Firebase config.FirebaseConfig

	Dashboard struct {
		// 后端类型：firebase / redis / mqtt / postgres
		Backend string

		// 路径命名空间，<Namespace>/actual 与 <Namespace>/prediction
		Namespace string
		// 设备固件拼错的旧命名空间，仍需订阅
		LegacyNamespace string

		// 历史窗口点数
		Capacity int
		// 推送队列长度
		QueueSize int
		// 启动加载超时，0 表示不设超时
		BootstrapTimeout time.Duration

		// HTML 输出路径，为空时只输出日志
		OutputPath string
		// 主题偏好文件
		PreferencePath string
	}

	// Redis 后端的键/通道前缀；Redis 后端下主题偏好也存入 Redis
	RedisBackend struct {
		KeyPrefix        string
		ChannelPrefix    string
		PreferencePrefix string
	}

	// MQTT 后端单次读取等待保留消息的时长
	MQTTBackend struct {
		FetchWait time.Duration
	}

	// PostgreSQL 后端的表和通知通道
	PostgresBackend struct {
		Table        string
		Channel      string
		EnsureSchema bool
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置，存在 .env 时先载入（不覆盖已有环境变量）
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "dashboard")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.DialTimeout = 5 * time.Second
	cfg.Redis.ReadTimeout = 3 * time.Second
	cfg.Redis.WriteTimeout = 3 * time.Second
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "temp-dashboard")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Firebase.Timeout = 10 * time.Second
	cfg.Firebase.LoadFromEnv("FIREBASE")

	cfg.Dashboard.Backend = getEnv("DASHBOARD_BACKEND", BackendFirebase)
	cfg.Dashboard.Namespace = getEnv("DASHBOARD_NAMESPACE", "Temp")
	cfg.Dashboard.LegacyNamespace = getEnv("DASHBOARD_LEGACY_NAMESPACE", "Temo")
	cfg.Dashboard.Capacity = getEnvInt("DASHBOARD_CAPACITY", 20)
	cfg.Dashboard.QueueSize = getEnvInt("DASHBOARD_QUEUE_SIZE", 64)
	cfg.Dashboard.BootstrapTimeout = time.Duration(getEnvInt("DASHBOARD_BOOTSTRAP_TIMEOUT", 10)) * time.Second
	cfg.Dashboard.OutputPath = getEnv("DASHBOARD_OUTPUT", "dashboard.html")
	cfg.Dashboard.PreferencePath = getEnv("DASHBOARD_PREFERENCES", ".dashboard-preferences.json")

	cfg.RedisBackend.KeyPrefix = getEnv("REDIS_KEY_PREFIX", "")
	cfg.RedisBackend.ChannelPrefix = getEnv("REDIS_CHANNEL_PREFIX", "dashboard:changes:")
	cfg.RedisBackend.PreferencePrefix = getEnv("REDIS_PREFERENCE_PREFIX", "dashboard:prefs:")

	cfg.MQTTBackend.FetchWait = time.Duration(getEnvInt("MQTT_FETCH_WAIT_MS", 2000)) * time.Millisecond

	cfg.PostgresBackend.Table = getEnv("POSTGRES_TABLE", "dashboard_values")
	cfg.PostgresBackend.Channel = getEnv("POSTGRES_CHANNEL", "dashboard_changes")
	cfg.PostgresBackend.EnsureSchema = getEnv("POSTGRES_ENSURE_SCHEMA", "false") == "true"

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Dashboard.Backend {
	case BackendFirebase:
		if c.Firebase.DatabaseURL == "" {
			return fmt.Errorf("FIREBASE_DATABASE_URL is required for the firebase backend")
		}
	case BackendRedis, BackendMQTT, BackendPostgres:
	default:
		return fmt.Errorf("unsupported backend: %s", c.Dashboard.Backend)
	}
	if c.Dashboard.Namespace == "" {
		return fmt.Errorf("DASHBOARD_NAMESPACE must not be empty")
	}
	if c.Dashboard.Capacity <= 0 {
		return fmt.Errorf("DASHBOARD_CAPACITY must be positive, got %d", c.Dashboard.Capacity)
	}
	if c.Dashboard.BootstrapTimeout < 0 {
		return fmt.Errorf("DASHBOARD_BOOTSTRAP_TIMEOUT must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// 非法数字使用默认值
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}
