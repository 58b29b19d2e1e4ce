package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const devSecretKey = "dev-session-secret-change"

// DefaultBranches is the branch list offered on the listing page when BRANCHES is unset.
var DefaultBranches = []string{"CAI", "CSM", "CSD", "CSE-A", "CSE-B", "CSE-C", "CSE-D", "MECH", "EEE", "ECE", "CIVIL"}

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env      string
	HTTPPort string

	DatabaseURL string
	DBPath      string
	RedisAddr   string

	SecretKey       string
	AdminUsername   string
	AdminPassword   string
	StudentUsername string
	StudentPassword string

	QRTTL         time.Duration
	QRExpiryMode  string
	TicketIssuer  string
	PublicBaseURL string

	DedupBackend string
	QueueBackend string
	BackupDir    string
	Branches     []string

	RateLimitPerMin   int
	WorkerMetricsAddr string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
}

// Load reads an optional .env file and returns config populated from the environment.
func Load() App {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
	return FromEnv()
}

// FromEnv builds the config from the current environment only.
func FromEnv() App {
	cfg := App{
		Env:                 getEnv("APP_ENV", "dev"),
		HTTPPort:            getEnv("HTTP_PORT", "5000"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DBPath:              getEnv("DB_PATH", "./attendance.db"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		SecretKey:           getEnv("SECRET_KEY", ""),
		AdminUsername:       getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:       getEnv("ADMIN_PASSWORD", "admin123"),
		StudentUsername:     getEnv("STUDENT_USERNAME", "student"),
		StudentPassword:     getEnv("STUDENT_PASSWORD", "student123"),
		QRTTL:               durationEnv("QR_TTL", 2*time.Minute),
		QRExpiryMode:        strings.ToLower(getEnv("QR_EXPIRY_MODE", "clock")),
		TicketIssuer:        getEnv("TICKET_ISSUER", "qrattend"),
		PublicBaseURL:       strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		DedupBackend:        getEnv("DEDUP_BACKEND", "memory"),
		QueueBackend:        getEnv("QUEUE_BACKEND", "memory"),
		BackupDir:           getEnv("BACKUP_DIR", "static/backups"),
		Branches:            listEnv("BRANCHES", DefaultBranches),
		RateLimitPerMin:     intEnv("RATE_LIMIT_PER_MIN", 120),
		WorkerMetricsAddr:   getEnv("WORKER_METRICS_ADDR", ":9101"),
		CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    getEnv("CLOUDINARY_FOLDER", "qrattend/backups"),
	}
	if cfg.SecretKey == "" {
		log.Printf("config: SECRET_KEY not set, using development key")
		cfg.SecretKey = devSecretKey
	}
	if cfg.QRExpiryMode != "clock" && cfg.QRExpiryMode != "ticket" {
		log.Printf("invalid QR_EXPIRY_MODE %q, using clock", cfg.QRExpiryMode)
		cfg.QRExpiryMode = "clock"
	}
	return cfg
}

// Production reports whether the app runs with production settings.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

// Logger builds the process logger: JSON in production, console otherwise.
func (a App) Logger() (*zap.Logger, error) {
	if a.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// UsePostgres reports whether DATABASE_URL points at Postgres; SQLite is used otherwise.
func (a App) UsePostgres() bool {
	return strings.HasPrefix(a.DatabaseURL, "postgres://") || strings.HasPrefix(a.DatabaseURL, "postgresql://")
}

// CloudinaryEnabled reports whether backup uploads can be performed.
func (a App) CloudinaryEnabled() bool {
	return a.CloudinaryCloudName != "" && a.CloudinaryAPIKey != "" && a.CloudinaryAPISecret != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}

func listEnv(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
