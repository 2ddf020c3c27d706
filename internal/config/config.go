package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// 存储驱动。
const (
	StorageNone  = "none"
	StorageLocal = "local"
	StorageS3    = "s3"
)

// 种子数据来源。
const (
	SeedBuiltin  = "builtin"
	SeedFile     = "file"
	SeedPostgres = "postgres"
)

// Config 聚合服务启动需要的关键配置。
type Config struct {
	HTTPPort           string
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	DBHost             string
	DBPort             int
	DBUser             string
	DBPassword         string
	DBName             string
	DBSSLMode          string
	// 会话配置
	SessionTTL        time.Duration
	SessionMax        int
	UploadDelay       time.Duration
	NotificationTTL   time.Duration
	CopiedTTL         time.Duration
	StorageQuotaBytes int64
	ShareBaseURL      string
	Locale            string
	// 种子数据
	SeedSource string // "builtin"、"file" 或 "postgres"
	SeedFile   string
	// 存储配置
	StorageDriver  string // "none"、"local" 或 "s3"
	StorageDir     string
	StorageBaseURL string // 本地存储对外地址，http(s) 时作为分享源
	S3Endpoint     string // S3/MinIO 端点，不含协议
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string
	S3Prefix       string
	S3PublicURL    string
	S3UseSSL       bool // 是否使用 HTTPS
	S3PathStyle    bool // 是否使用路径风格访问（MinIO 需要设为 true）
	// 日志配置
	LogLevel      string
	LogPath       string // 为空时只输出到 stdout
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// Load 从环境变量加载配置，并提供默认值。
func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	corsOrigins := parseList(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:5173"}
	}

	rateLimitRequests, err := parseIntEnv("RATE_LIMIT_REQUESTS", 120)
	if err != nil {
		return nil, err
	}
	rateLimitWindow, err := parseDurationEnv("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}
	dbPort, err := parseIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	sessionTTL, err := parseDurationEnv("SESSION_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	sessionMax, err := parseIntEnv("SESSION_MAX", 1024)
	if err != nil {
		return nil, err
	}
	uploadDelay, err := parseDurationEnv("UPLOAD_DELAY", 1500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	notificationTTL, err := parseDurationEnv("NOTIFICATION_TTL", 4*time.Second)
	if err != nil {
		return nil, err
	}
	copiedTTL, err := parseDurationEnv("COPIED_TTL", 2*time.Second)
	if err != nil {
		return nil, err
	}
	quota, err := parseInt64Env("STORAGE_QUOTA_BYTES", 50*1024*1024)
	if err != nil {
		return nil, err
	}

	logMaxSize, err := parseIntEnv("LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return nil, err
	}
	logMaxBackups, err := parseIntEnv("LOG_MAX_BACKUPS", 5)
	if err != nil {
		return nil, err
	}
	logMaxAge, err := parseIntEnv("LOG_MAX_AGE_DAYS", 30)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:           port,
		CORSAllowedOrigins: corsOrigins,
		RateLimitRequests:  rateLimitRequests,
		RateLimitWindow:    rateLimitWindow,
		DBHost:             envOrDefault("DB_HOST", "127.0.0.1"),
		DBPort:             dbPort,
		DBUser:             envOrDefault("DB_USER", "gridflow"),
		DBPassword:         envOrDefault("DB_PASSWORD", "gridflow"),
		DBName:             envOrDefault("DB_NAME", "gridflow"),
		DBSSLMode:          envOrDefault("DB_SSL_MODE", "disable"),
		SessionTTL:         sessionTTL,
		SessionMax:         sessionMax,
		UploadDelay:        uploadDelay,
		NotificationTTL:    notificationTTL,
		CopiedTTL:          copiedTTL,
		StorageQuotaBytes:  quota,
		ShareBaseURL:       envOrDefault("SHARE_BASE_URL", "https://gridflow-gateway.pro/v1/share"),
		Locale:             envOrDefault("LOCALE", "en"),
		SeedSource:         strings.ToLower(envOrDefault("SEED_SOURCE", SeedBuiltin)),
		SeedFile:           os.Getenv("SEED_FILE"),
		StorageDriver:      strings.ToLower(envOrDefault("STORAGE_DRIVER", StorageNone)),
		StorageDir:         envOrDefault("STORAGE_DIR", "./data"),
		StorageBaseURL:     os.Getenv("STORAGE_BASE_URL"),
		S3Endpoint:         envOrDefault("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey:        envOrDefault("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:        envOrDefault("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:           envOrDefault("S3_BUCKET", "gridflow"),
		S3Region:           envOrDefault("S3_REGION", "us-east-1"),
		S3Prefix:           os.Getenv("S3_PREFIX"),
		S3PublicURL:        os.Getenv("S3_PUBLIC_URL"),
		S3UseSSL:           parseBoolEnv("S3_USE_SSL", false),
		S3PathStyle:        parseBoolEnv("S3_PATH_STYLE", true),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		LogPath:            os.Getenv("LOG_PATH"),
		LogMaxSizeMB:       logMaxSize,
		LogMaxBackups:      logMaxBackups,
		LogMaxAgeDays:      logMaxAge,
		LogCompress:        parseBoolEnv("LOG_COMPRESS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.StorageDriver == StorageLocal {
		if err := ensureDir(cfg.StorageDir); err != nil {
			return nil, fmt.Errorf("确保存储目录失败: %w", err)
		}
	}
	return cfg, nil
}

// Validate 校验枚举类配置。
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageNone, StorageLocal, StorageS3:
	default:
		return fmt.Errorf("不支持的存储驱动: %s", c.StorageDriver)
	}

	switch c.SeedSource {
	case SeedBuiltin, SeedPostgres:
	case SeedFile:
		if c.SeedFile == "" {
			return fmt.Errorf("SEED_SOURCE=file 需要设置 SEED_FILE")
		}
	default:
		return fmt.Errorf("不支持的种子来源: %s", c.SeedSource)
	}

	if _, err := url.Parse(c.ShareBaseURL); err != nil {
		return fmt.Errorf("解析 SHARE_BASE_URL 失败: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("路径 %s 已存在但不是目录", path)
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(path, 0o755)
	}

	return err
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}

	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value <= 0 {
		return defaultValue, nil
	}
	return value, nil
}

func parseInt64Env(key string, defaultValue int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value <= 0 {
		return defaultValue, nil
	}
	return value, nil
}

// parseDurationEnv 允许显式的 0（例如关闭模拟上传延迟），负数回退到默认值。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value < 0 {
		return defaultValue, nil
	}
	return value, nil
}

func parseBoolEnv(key string, defaultValue bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	lower := strings.ToLower(raw)
	return lower == "true" || lower == "1" || lower == "yes"
}

// PostgresDSN 生成标准 postgres:// 连接串，供数据访问层直接使用。
func (c *Config) PostgresDSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:   c.DBName,
	}

	q := url.Values{}
	if c.DBSSLMode != "" {
		q.Set("sslmode", c.DBSSLMode)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
