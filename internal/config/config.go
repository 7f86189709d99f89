package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the recodex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Recommend RecommendConfig `yaml:"recommend"`
	Session   SessionConfig   `yaml:"session"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the Postgres catalog connection settings.
type DatabaseConfig struct {
	DSN                string `yaml:"dsn"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
	ReadinessTimeout   int    `yaml:"readiness_timeout_sec"`
}

// CacheConfig holds the Redis/Valkey connection settings.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// Enabled reports whether any limit is configured.
func (b BudgetConfig) Enabled() bool {
	return b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider         string       `yaml:"provider"`
	APIKey           string       `yaml:"api_key"`
	BaseURL          string       `yaml:"base_url"`
	Model            string       `yaml:"model"`
	Dimensions       int          `yaml:"dimensions"`
	QueryInstruction string       `yaml:"query_instruction"`
	TimeoutSec       int          `yaml:"timeout_sec"`
	CacheTTLSec      int          `yaml:"cache_ttl_sec"`
	Budget           BudgetConfig `yaml:"budget"`
}

// BreakerConfig holds circuit breaker settings for the LLM provider.
type BreakerConfig struct {
	MaxFailures    uint32 `yaml:"max_failures"`
	OpenTimeoutSec int    `yaml:"open_timeout_sec"`
	HalfOpenProbes uint32 `yaml:"half_open_probes"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	Provider        string        `yaml:"provider"`
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	Temperature     float32       `yaml:"temperature"`
	MaxOutputTokens int32         `yaml:"max_output_tokens"`
	TimeoutSec      int           `yaml:"timeout_sec"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"` // 0 = unlimited
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	Breaker         BreakerConfig `yaml:"breaker"`
	Budget          BudgetConfig  `yaml:"budget"`
}

// KeywordOverride forces a category when the raw query contains any of Keywords.
// CategoryID wins over Category when set.
type KeywordOverride struct {
	Keywords   []string `yaml:"keywords"`
	Category   string   `yaml:"category"`
	CategoryID int64    `yaml:"category_id"`
}

// SingleShotConfig holds limits of the natural-language recommendation flow.
type SingleShotConfig struct {
	VectorLimit  int `yaml:"vector_limit"`
	KeywordLimit int `yaml:"keyword_limit"`
}

// ResearchConfig holds limits of the two-step shopping research flow.
type ResearchConfig struct {
	VectorLimit int `yaml:"vector_limit"`
	// UseOverrides applies keyword overrides to research queries too. The
	// safety lock applies to both flows regardless.
	UseOverrides bool `yaml:"use_overrides"`
}

// RecommendConfig holds the retrieval, fusion and re-rank tuning constants.
type RecommendConfig struct {
	TopK                   int               `yaml:"top_k"`
	RerankPool             int               `yaml:"rerank_pool"`
	VectorWeight           float64           `yaml:"vector_weight"`
	KeywordWeight          float64           `yaml:"keyword_weight"`
	KeywordFloor           float64           `yaml:"keyword_floor"`
	CategoryMatchThreshold float64           `yaml:"category_match_threshold"`
	SimilarityThreshold    float64           `yaml:"similarity_threshold"`
	SingleShot             SingleShotConfig  `yaml:"single_shot"`
	Research               ResearchConfig    `yaml:"research"`
	SafetyLockKeywords     []string          `yaml:"safety_lock_keywords"`
	KeywordOverrides       []KeywordOverride `yaml:"keyword_overrides"`
}

// SessionConfig holds conversation state cache settings.
type SessionConfig struct {
	TTLSec int `yaml:"ttl_sec"`
}

// Tuning defaults. Their derivation is not documented anywhere; keep them overridable.
const (
	DefaultTopK                   = 5
	DefaultRerankPool             = 8
	DefaultVectorWeight           = 0.7
	DefaultKeywordWeight          = 0.3
	DefaultKeywordFloor           = 0.05
	DefaultCategoryMatchThreshold = 0.3
	DefaultSimilarityThreshold    = 0.60
	DefaultSingleShotVectorLimit  = 20
	DefaultSingleShotKeywordLimit = 20
	DefaultResearchVectorLimit    = 50
	DefaultSessionTTLSec          = 1800
)

// DefaultSafetyLockKeywords are hardware terms that must never produce a category-less search.
func DefaultSafetyLockKeywords() []string {
	return []string{"CPU", "노트북", "그래픽카드"}
}

// DefaultKeywordOverrides maps unambiguous product-type keywords to top-level categories.
func DefaultKeywordOverrides() []KeywordOverride {
	return []KeywordOverride{
		{Keywords: []string{"CPU", "프로세서"}, Category: "CPU"},
		{Keywords: []string{"그래픽카드", "GPU"}, Category: "그래픽카드"},
		{Keywords: []string{"모니터"}, Category: "모니터"},
		{Keywords: []string{"노트북"}, Category: "노트북"},
	}
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 90
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetimeSec <= 0 {
		c.Database.ConnMaxLifetimeSec = 300
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	c.applyEmbeddingDefaults()
	c.applyLLMDefaults()
	c.applyRecommendDefaults()
	if c.Session.TTLSec <= 0 {
		c.Session.TTLSec = DefaultSessionTTLSec
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "recodex:"
	}
}

func (c *Config) applyEmbeddingDefaults() {
	e := &c.Embedding
	if e.Provider == "" {
		e.Provider = "openai"
	}
	if e.Model == "" {
		e.Model = "text-embedding-3-small"
	}
	if e.Dimensions <= 0 {
		e.Dimensions = 1536
	}
	if e.TimeoutSec <= 0 {
		e.TimeoutSec = 10
	}
	if e.CacheTTLSec <= 0 {
		e.CacheTTLSec = 7 * 24 * 3600
	}
}

func (c *Config) applyLLMDefaults() {
	l := &c.LLM
	if l.Provider == "" {
		l.Provider = "gemini"
	}
	if l.Model == "" {
		l.Model = "gemini-2.0-flash"
	}
	if l.Temperature <= 0 {
		l.Temperature = 0.2
	}
	if l.MaxOutputTokens <= 0 {
		l.MaxOutputTokens = 2048
	}
	if l.TimeoutSec <= 0 {
		l.TimeoutSec = 30
	}
	if l.RateLimitRPS > 0 && l.RateLimitBurst <= 0 {
		l.RateLimitBurst = 1
	}
	if l.Breaker.MaxFailures == 0 {
		l.Breaker.MaxFailures = 5
	}
	if l.Breaker.OpenTimeoutSec <= 0 {
		l.Breaker.OpenTimeoutSec = 30
	}
	if l.Breaker.HalfOpenProbes == 0 {
		l.Breaker.HalfOpenProbes = 1
	}
}

func (c *Config) applyRecommendDefaults() {
	r := &c.Recommend
	if r.TopK <= 0 {
		r.TopK = DefaultTopK
	}
	if r.RerankPool <= 0 {
		r.RerankPool = DefaultRerankPool
	}
	// Weights of exactly zero are legal (e.g. keyword-only tuning), so only
	// fill them when both are unset.
	if r.VectorWeight == 0 && r.KeywordWeight == 0 {
		r.VectorWeight = DefaultVectorWeight
		r.KeywordWeight = DefaultKeywordWeight
	}
	if r.KeywordFloor <= 0 {
		r.KeywordFloor = DefaultKeywordFloor
	}
	if r.CategoryMatchThreshold <= 0 {
		r.CategoryMatchThreshold = DefaultCategoryMatchThreshold
	}
	if r.SimilarityThreshold <= 0 {
		r.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if r.SingleShot.VectorLimit <= 0 {
		r.SingleShot.VectorLimit = DefaultSingleShotVectorLimit
	}
	if r.SingleShot.KeywordLimit <= 0 {
		r.SingleShot.KeywordLimit = DefaultSingleShotKeywordLimit
	}
	if r.Research.VectorLimit <= 0 {
		r.Research.VectorLimit = DefaultResearchVectorLimit
	}
	if r.SafetyLockKeywords == nil {
		r.SafetyLockKeywords = DefaultSafetyLockKeywords()
	}
	if r.KeywordOverrides == nil {
		r.KeywordOverrides = DefaultKeywordOverrides()
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required")
	}
	if err := validateBudget("embedding", c.Embedding.Budget); err != nil {
		return err
	}
	if err := validateBudget("llm", c.LLM.Budget); err != nil {
		return err
	}
	return c.Recommend.validate()
}

func validateBudget(section string, b BudgetConfig) error {
	switch b.Action {
	case "", "warn", "reject":
		return nil
	default:
		return fmt.Errorf("%s.budget.action must be \"warn\" or \"reject\", got %q", section, b.Action)
	}
}

func (r *RecommendConfig) validate() error {
	for name, v := range map[string]float64{
		"vector_weight":            r.VectorWeight,
		"keyword_weight":           r.KeywordWeight,
		"keyword_floor":            r.KeywordFloor,
		"category_match_threshold": r.CategoryMatchThreshold,
		"similarity_threshold":     r.SimilarityThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("recommend.%s must be between 0 and 1, got %g", name, v)
		}
	}
	if r.TopK < 1 {
		return fmt.Errorf("recommend.top_k must be positive, got %d", r.TopK)
	}
	if r.RerankPool < r.TopK {
		return fmt.Errorf("recommend.rerank_pool (%d) must be >= recommend.top_k (%d)", r.RerankPool, r.TopK)
	}
	for i, o := range r.KeywordOverrides {
		if len(o.Keywords) == 0 {
			return fmt.Errorf("recommend.keyword_overrides[%d].keywords is required", i)
		}
		if o.Category == "" && o.CategoryID <= 0 {
			return fmt.Errorf("recommend.keyword_overrides[%d] needs category or category_id", i)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
