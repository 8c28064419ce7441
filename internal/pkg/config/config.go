package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"`
	AdminAddr string `env:"ADMIN_ADDR" envDefault:":9091"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// RedisURL selects the durable backend. Empty means the local
	// JSON file fallback, which is development-only.
	RedisURL      string `env:"REDIS_URL"`
	FileStorePath string `env:"FILE_STORE_PATH" envDefault:"traffic_log.json"`

	DetailCap  int           `env:"DETAIL_CAP" envDefault:"1000"`
	DetailTTL  time.Duration `env:"DETAIL_TTL" envDefault:"45m"`
	CounterTTL time.Duration `env:"COUNTER_TTL" envDefault:"15m"`

	// EvictSlack is how far past DetailCap the index may grow before a
	// trim runs. A larger slack means fewer, larger trims.
	EvictSlack    int `env:"EVICT_SLACK" envDefault:"50"`
	QueryMaxLimit int `env:"QUERY_MAX_LIMIT" envDefault:"500"`

	// Client-IP resolution policy (ordered precedence). The
	// forwarded-for index is configurable because the right entry
	// depends on the deployment's proxy topology.
	EdgeIPHeader      string `env:"EDGE_IP_HEADER" envDefault:"CF-Connecting-IP"`
	RealIPHeader      string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`
	ForwardedForIndex int    `env:"FORWARDED_FOR_INDEX" envDefault:"0"`

	BotHeader           string        `env:"BOT_HEADER" envDefault:"X-Is-Bot"`
	PipelineWrites      bool          `env:"PIPELINE_WRITES" envDefault:"true"`
	RecordTimeout       time.Duration `env:"RECORD_TIMEOUT" envDefault:"2s"`
	HeaderSnapshotLimit int           `env:"HEADER_SNAPSHOT_LIMIT" envDefault:"16"`

	// Demo shop credentials. Plain text, demo-only.
	DemoUser string `env:"DEMO_USER" envDefault:"demo"`
	DemoPass string `env:"DEMO_PASS" envDefault:"demo123"`

	// Archiver. The archive only runs when POSTGRES_URL is set; the
	// serving path never depends on it.
	PostgresURL      string        `env:"POSTGRES_URL"`
	ArchiveInterval  time.Duration `env:"ARCHIVE_INTERVAL" envDefault:"30s"`
	ArchiveBatchSize int           `env:"ARCHIVE_BATCH_SIZE" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
