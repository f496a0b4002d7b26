package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// 运行环境
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config 应用配置结构
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Tenancy   TenancyConfig   `mapstructure:"tenancy"`
	PowerBI   PowerBIConfig   `mapstructure:"powerbi"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	MainDomain  string `mapstructure:"main_domain"` // 管理门户主域名，如 portal.example.com
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	DSN             string `mapstructure:"dsn"`    // 完整连接串，优先于分项配置
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
	SeedFile        string `mapstructure:"seed_file"` // 开发环境种子数据（yaml）
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)
	Mode string `mapstructure:"mode"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	MasterName       string   `mapstructure:"master_name"`
	SentinelAddrs    []string `mapstructure:"sentinel_addrs"`
	SentinelPassword string   `mapstructure:"sentinel_password"`

	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// Addr 单节点地址
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// AuthConfig 令牌签发配置
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"`
	Issuer               string `mapstructure:"issuer"`
	Audience             string `mapstructure:"audience"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes"`
}

// TokenLifetime 令牌有效期，未配置时默认 60 分钟
func (c AuthConfig) TokenLifetime() time.Duration {
	if c.TokenLifetimeMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(c.TokenLifetimeMinutes) * time.Minute
}

// TenancyConfig 租户解析配置
type TenancyConfig struct {
	// DevLoopbackAdmin 本地回环地址按管理门户处理（生产环境禁止）
	DevLoopbackAdmin bool `mapstructure:"dev_loopback_admin"`
	// DevTenantFallback 本地回环地址无法解析租户时回退到第一个活跃租户（生产环境禁止）
	DevTenantFallback bool `mapstructure:"dev_tenant_fallback"`
	// CacheTTLSeconds 子域名缓存时间，0 表示不缓存
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
}

// CacheTTL 子域名缓存时间
func (c TenancyConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// PowerBIConfig Power BI 嵌入配置，启用时所有字段必须合法
type PowerBIConfig struct {
	Enabled               bool   `mapstructure:"enabled"`
	WorkspaceID           string `mapstructure:"workspace_id" validate:"required,uuid"`
	TenantID              string `mapstructure:"tenant_id" validate:"required,uuid"`
	ClientID              string `mapstructure:"client_id" validate:"required,uuid"`
	ClientSecret          string `mapstructure:"client_secret" validate:"required"`
	AuthorityURI          string `mapstructure:"authority_uri" validate:"required,url"`
	ResourceURI           string `mapstructure:"resource_uri" validate:"required,url"`
	EmbedURLBase          string `mapstructure:"embed_url_base" validate:"required,url"`
	APIBaseURL            string `mapstructure:"api_base_url" validate:"omitempty,url"`
	TokenExpiryMinutes    int    `mapstructure:"token_expiry_minutes" validate:"gte=0"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" validate:"gte=0"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	LoginPerMinute int `mapstructure:"login_per_minute"` // 0 表示不限流
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")
	setDefaults(v)

	// 环境变量优先级高于配置文件：APP_AUTH_JWT_SECRET
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "customer-portal")
	v.SetDefault("app.environment", EnvDevelopment)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "customer-portal")
	v.SetDefault("auth.audience", "customer-portal")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	for _, key := range []string{"workspace_id", "tenant_id", "client_id", "client_secret"} {
		v.SetDefault("powerbi."+key, "") // 仅通过环境变量注入
	}
	v.SetDefault("powerbi.api_base_url", "https://api.powerbi.com/v1.0/myorg")
	v.SetDefault("powerbi.token_expiry_minutes", 60)
	v.SetDefault("powerbi.request_timeout_seconds", 30)
	v.SetDefault("rate_limit.login_per_minute", 20)
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// IsProduction 是否生产环境
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, EnvProduction)
}

// IsDevelopment 是否开发环境
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.App.Environment, EnvDevelopment)
}

// Validate 启动期校验，任何错误都应终止启动
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.App.Environment) {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("app.environment 取值无效: %q", c.App.Environment))
	}

	if strings.TrimSpace(c.App.MainDomain) == "" {
		errs = append(errs, errors.New("app.main_domain 不能为空"))
	}

	if c.IsProduction() {
		if c.Tenancy.DevLoopbackAdmin || c.Tenancy.DevTenantFallback {
			errs = append(errs, errors.New("生产环境禁止启用 tenancy.dev_loopback_admin / tenancy.dev_tenant_fallback"))
		}
		if len(c.Auth.JWTSecret) < 32 {
			errs = append(errs, errors.New("生产环境 auth.jwt_secret 至少 32 字节"))
		}
	}

	if err := c.PowerBI.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Validate 启用 Power BI 时校验全部凭据字段
func (c PowerBIConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := validator.New().Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				msgs = append(msgs, powerBIFieldError(fe))
			}
			return fmt.Errorf("Power BI 配置无效: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("Power BI 配置无效: %w", err)
	}
	return nil
}

func powerBIFieldError(fe validator.FieldError) string {
	field := "powerbi." + strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "uuid":
		return field + " must be a valid GUID"
	case "url":
		return field + " must be a valid URI"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Driver == "sqlite" {
		return c.DBName
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
