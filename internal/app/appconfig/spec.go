package appconfig

import (
	"time"

	"github.com/riftstats/backend-next/internal/app/appcontext"
)

type ConfigSpec struct {
	// ServiceAddress is the listen address would listen on for serving normal service requests.
	ServiceAddress string `required:"true" split_words:"true" default:"localhost:9030"`

	// LogJsonStdout is whether to log JSON logs (instead of pretty-print logs) to stdout for the ease of log collection.
	LogJsonStdout bool `split_words:"true" default:"false"`

	// TrustedProxies is a list of trusted proxies that are trusted to report a real IP via the X-Forwarded-For header.
	TrustedProxies []string `required:"true" split_words:"true" default:"::1,127.0.0.1,10.0.0.0/8"`

	// DevMode to indicate development mode. When true, the program would spin up utilities for debugging and
	// provide a more contextual message when encountered a panic. See internal/server/httpserver/http.go for the
	// actual implementation details.
	DevMode bool `split_words:"true"`

	// infrastructure components connection instructions

	// PostgresDSN is the data source name for the PostgreSQL database. See
	// https://bun.uptrace.dev/postgres/#pgdriver for more details on how to construct a PostgreSQL DSN.
	PostgresDSN string `required:"true" split_words:"true"`

	PostgresMaxOpenConns    int           `split_words:"true" default:"10"`
	PostgresMaxIdleConns    int           `split_words:"true" default:"2"`
	PostgresConnMaxLifeTime time.Duration `split_words:"true" default:"5m"`
	PostgresConnMaxIdleTime time.Duration `split_words:"true" default:"5m"`

	BunDebugVerbose bool `split_words:"true"`

	// RedisURL is the URL of the Redis server, and by default uses redis db 1, to avoid potential collision
	// with the previous running backend instance. See https://pkg.go.dev/github.com/go-redis/redis/v8#ParseURL
	// for more information on how to construct a Redis URL.
	RedisURL string `required:"true" split_words:"true" default:"redis://127.0.0.1:6379/1"`

	// HTTPServerShutdownTimeout is the timeout for the HTTP server to shut down gracefully.
	HTTPServerShutdownTimeout time.Duration `required:"true" split_words:"true" default:"60s"`

	// analysis tunables

	// SignificanceAlpha is the significance level used by hypothesis tests when
	// comparing performance samples.
	SignificanceAlpha float64 `split_words:"true" default:"0.05"`

	// ConfidenceLevel is the coverage of the confidence intervals attached to
	// computed baselines and win rates.
	ConfidenceLevel float64 `split_words:"true" default:"0.95"`

	// BaselineDecayRate is the per-day exponential decay rate applied to match
	// weights when computing baselines, so recent games count more.
	BaselineDecayRate float64 `split_words:"true" default:"0.02"`

	// MinSampleSize is the number of matches below which a baseline is shrunk
	// toward the player's overall baseline and flagged as low confidence.
	MinSampleSize int `split_words:"true" default:"10"`

	// TrendSlopeThreshold is the absolute per-game slope below which a
	// performance trend is reported as stable.
	TrendSlopeThreshold float64 `split_words:"true" default:"0.005"`

	// RecentFormDays is the lookback window for the recent form factor of
	// recommendations.
	RecentFormDays int `split_words:"true" default:"14"`

	// RecommendWeights are the factor weights used by the balanced
	// recommendation strategy. Strategy presets derive from these.
	RecommendWeights RecommendWeightMap `split_words:"true" default:"individual:0.35,synergy:0.25,recent_form:0.20,meta:0.15,confidence:0.05"`

	// RecommendConfidenceFloor is the minimum composite confidence below which
	// a recommendation set is returned empty and flagged instead.
	RecommendConfidenceFloor float64 `split_words:"true" default:"0.2"`

	// WorkerInterval describes the interval in-between different batches
	WorkerInterval time.Duration `required:"true" split_words:"true" default:"10m"`

	// WorkerSeparation describes the separation time in-between different microtasks
	WorkerSeparation time.Duration `required:"true" split_words:"true" default:"3s"`

	// WorkerTimeout describes the timeout for a single batch to run
	WorkerTimeout time.Duration `required:"true" split_words:"true" default:"10m"`

	// WorkerHeartbeatURL is the map of URLs to ping to check if the worker is alive.
	// The key is the name of the worker, and the value is the URL.
	// Possible keys are: "main"
	WorkerHeartbeatURL WorkerHeartbeatURLMap `split_words:"true"`

	// WorkerEnabled is a flag to indicate whether to enable the worker.
	WorkerEnabled bool `split_words:"true"`

	// AdminKey is the key used to authenticate the admin API.
	AdminKey string `split_words:"true"`
}

type Config struct {
	// ConfigSpec is the configuration specification injected to the config.
	ConfigSpec

	// AppContext is the application context
	AppContext appcontext.Ctx
}
