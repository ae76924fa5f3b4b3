package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	Redis   RedisConfig   `mapstructure:"redis"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Log     LogConfig     `mapstructure:"log"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Mail    MailConfig    `mapstructure:"mail"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
}

// ServerConfig describes the order ledger gRPC service.
type ServerConfig struct {
	Name        string `mapstructure:"name"`
	Port        int    `mapstructure:"port"`
	Host        string `mapstructure:"host"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	MenuTTL  time.Duration `mapstructure:"menu_ttl"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type GatewayConfig struct {
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
	Version string `mapstructure:"version"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	OTPTTL    time.Duration `mapstructure:"otp_ttl"`
}

// MailConfig holds SMTP credentials. An empty host switches to the log mailer.
type MailConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	FromName string        `mapstructure:"from_name"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Token       string        `mapstructure:"token"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LedgerConfig selects where orders live. Mode "local" runs the ledger in
// process on Store ("mongo", "mysql" or "memory"); mode "remote" talks to the
// order service found through etcd.
type LedgerConfig struct {
	Mode   string `mapstructure:"mode"`
	Store  string `mapstructure:"store"`
	Target string `mapstructure:"target"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("khanpan")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		// Read config file
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// setDefaults registers every key so KHANPAN_ environment variables apply
// even when the file does not mention them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "order-service")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 50052)
	v.SetDefault("server.metrics_port", 9102)

	v.SetDefault("etcd.endpoints", []string{"127.0.0.1:2379"})
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/khanpan/services/")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.menu_ttl", 5*time.Minute)

	v.SetDefault("mysql.host", "127.0.0.1")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.username", "")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "khanpan")
	v.SetDefault("mysql.max_idle_conns", 5)
	v.SetDefault("mysql.max_open_conns", 20)

	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.database", "restaurant")
	v.SetDefault("mongodb.collection", "audit_logs")

	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 3000)
	v.SetDefault("gateway.version", "1.0.0")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.otp_ttl", 10*time.Minute)

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", "587")
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.from_name", "KhanPan")
	v.SetDefault("mail.timeout", 15*time.Second)

	v.SetDefault("llm.base_url", "https://models.inference.ai.azure.com")
	v.SetDefault("llm.token", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout", 30*time.Second)

	v.SetDefault("ledger.mode", "local")
	v.SetDefault("ledger.store", "mongo")
	v.SetDefault("ledger.target", "")
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

// Addr is the host:port the order service listens on.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsAddr is where the order service exposes /metrics. Empty when
// metrics_port is 0.
func (c *ServerConfig) MetricsAddr() string {
	if c.MetricsPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}
