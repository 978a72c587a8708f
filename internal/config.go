package internal

import (
	"fmt"
	"strings"
	"time"
)

const (
	StoreBadger = "badger"
	StoreMemory = "memory"
)

// Config is the server configuration, read from the environment.
type Config struct {
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	Host                 string        `env:"HOST,default=0.0.0.0"`
	GrpcPort             int           `env:"GRPC_PORT,default=50051"`
	HttpPort             int           `env:"HTTP_PORT,default=8080"`
	StoreMode            string        `env:"STORE_MODE,default=badger"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,default=./data/badger"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH"`
	BufferSize           int           `env:"BUFFER_SIZE,default=1000"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=1s"`
	TypingDebounce       time.Duration `env:"TYPING_DEBOUNCE,default=300ms"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,default=20"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=2000"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	EnableModeration     bool          `env:"ENABLE_MODERATION,default=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	JwtSecret            string        `env:"JWT_SECRET,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=5s"`
	LatencyThreshold     time.Duration `env:"LATENCY_THRESHOLD,default=100ms"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=10"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS"`
}

func (c Config) Validate() error {
	switch c.StoreMode {
	case StoreBadger, StoreMemory:
	default:
		return fmt.Errorf("STORE_MODE must be %q or %q, got %q", StoreBadger, StoreMemory, c.StoreMode)
	}
	if c.StoreMode == StoreBadger && c.BadgerFilepath == "" {
		return fmt.Errorf("BADGER_FILEPATH is required when STORE_MODE is %q", StoreBadger)
	}
	if c.BufferSize <= 0 || c.ConnectionBufferSize <= 0 {
		return fmt.Errorf("BUFFER_SIZE and CONNECTION_BUFFER_SIZE must be positive")
	}
	_, err := CharacterRune(c.CharReplacement)
	return err
}

// Origins splits ALLOWED_ORIGINS, a comma separated list of host patterns.
func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
