package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

type DBEnv struct {
	Path string `envconfig:"DB_PATH" default:".portal/portal.db"`
}

type AuthEnv struct {
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	CookieName    string        `envconfig:"SESSION_COOKIE" default:"portal_session"`
	CookieSecure  bool          `envconfig:"SESSION_COOKIE_SECURE" default:"false"`
}

type BlobEnv struct {
	Type    string `envconfig:"BLOB_TYPE" default:"local"`
	BaseDir string `envconfig:"BLOB_BASE_DIR" default:".portal/files"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"portal/"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
}

type RedisEnv struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	FlagTTL  time.Duration `envconfig:"REDIS_FLAG_TTL" default:"30s"`
	Password string        `envconfig:"REDIS_PASSWORD"`
}

type SeedEnv struct {
	File string `envconfig:"SEED_FILE"`
}

// VAPIDEnv holds the web push signing keys. Push notifications are skipped
// when the keys are unset.
type VAPIDEnv struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDContact    string `envconfig:"VAPID_CONTACT" default:"mailto:ops@atelierhub.example"`
}

type Env struct {
	BaseEnv
	DBEnv
	AuthEnv
	BlobEnv
	RedisEnv
	SeedEnv
	VAPIDEnv
}

const namespace = "PORTAL"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}
