package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Aptos     AptosConfig     `yaml:"aptos"`
	Mediation MediationConfig `yaml:"mediation"`
	Wallet    WalletConfig    `yaml:"wallet"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	ReadTimeout       time.Duration `yaml:"readTimeout"`
	WriteTimeout      time.Duration `yaml:"writeTimeout"`
	IdleTimeout       time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	MetricsEnabled    bool          `yaml:"metricsEnabled"`
	AllowedOriginsCSV string        `yaml:"allowedOrigins"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AllowedOrigins splits the CSV origin list, dropping blanks.
func (c HTTPConfig) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOriginsCSV, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// DatabaseConfig is optional; without a URL the listings are empty.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type AptosConfig struct {
	Network   string        `yaml:"network"`
	NodeURL   string        `yaml:"nodeUrl"`
	FaucetURL string        `yaml:"faucetUrl"`
	Timeout   time.Duration `yaml:"timeout"`
}

type MediationConfig struct {
	APIKey  string        `yaml:"apiKey"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type WalletConfig struct {
	SessionSecret string        `yaml:"sessionSecret"`
	SessionTTL    time.Duration `yaml:"sessionTTL"`
	ChallengeTTL  time.Duration `yaml:"challengeTTL"`
	Networks      []string      `yaml:"networks"`
}

// RateLimitConfig caps expensive per-wallet calls. Zero disables a limiter.
type RateLimitConfig struct {
	FundPerMinute    float64 `yaml:"fundPerMinute"`
	FundBurst        int     `yaml:"fundBurst"`
	MediatePerMinute float64 `yaml:"mediatePerMinute"`
	MediateBurst     int     `yaml:"mediateBurst"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console|json
}

const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 8080
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 75 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultAptosNetwork   = "testnet"
	defaultAptosNodeURL   = "https://fullnode.testnet.aptoslabs.com"
	defaultAptosFaucetURL = "https://faucet.testnet.aptoslabs.com"
	defaultAptosTimeout   = 15 * time.Second

	defaultMediationModel   = "gemini-2.5-flash"
	defaultMediationTimeout = 60 * time.Second

	defaultSessionTTL   = 24 * time.Hour
	defaultChallengeTTL = 5 * time.Minute

	defaultLoggingLevel  = "info"
	defaultLoggingFormat = "json"
)

// Default returns the configuration used when neither a file nor the
// environment says otherwise.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Host:            defaultHost,
			Port:            defaultPort,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
			MetricsEnabled:  true,
		},
		Aptos: AptosConfig{
			Network:   defaultAptosNetwork,
			NodeURL:   defaultAptosNodeURL,
			FaucetURL: defaultAptosFaucetURL,
			Timeout:   defaultAptosTimeout,
		},
		Mediation: MediationConfig{
			Model:   defaultMediationModel,
			Timeout: defaultMediationTimeout,
		},
		Wallet: WalletConfig{
			SessionTTL:   defaultSessionTTL,
			ChallengeTTL: defaultChallengeTTL,
			Networks:     []string{defaultAptosNetwork},
		},
		RateLimit: RateLimitConfig{
			FundPerMinute:    1,
			FundBurst:        2,
			MediatePerMinute: 6,
			MediateBurst:     3,
		},
		Logging: LoggingConfig{
			Level:  defaultLoggingLevel,
			Format: defaultLoggingFormat,
		},
	}
}

// Load layers defaults, an optional YAML file and environment overrides, then
// validates the result. An empty path tries configs/config.yaml and skips it
// when absent; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = "configs/config.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.HTTP.Host, "SERVER_HOST")
	if err := setPort(&cfg.HTTP.Port, "SERVER_PORT"); err != nil {
		return err
	}
	for key, dst := range map[string]*time.Duration{
		"SERVER_READ_TIMEOUT":     &cfg.HTTP.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":    &cfg.HTTP.WriteTimeout,
		"SERVER_IDLE_TIMEOUT":     &cfg.HTTP.IdleTimeout,
		"SERVER_SHUTDOWN_TIMEOUT": &cfg.HTTP.ShutdownTimeout,
		"APTOS_TIMEOUT":           &cfg.Aptos.Timeout,
		"MEDIATION_TIMEOUT":       &cfg.Mediation.Timeout,
		"WALLET_SESSION_TTL":      &cfg.Wallet.SessionTTL,
	} {
		if err := setDuration(dst, key); err != nil {
			return err
		}
	}
	if err := setBool(&cfg.HTTP.MetricsEnabled, "SERVER_METRICS_ENABLED"); err != nil {
		return err
	}
	setString(&cfg.HTTP.AllowedOriginsCSV, "SERVER_ALLOWED_ORIGINS")

	setString(&cfg.Database.URL, "DATABASE_URL")

	setString(&cfg.Aptos.Network, "APTOS_NETWORK")
	setString(&cfg.Aptos.NodeURL, "APTOS_NODE_URL")
	setString(&cfg.Aptos.FaucetURL, "APTOS_FAUCET_URL")

	setString(&cfg.Mediation.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Mediation.Model, "GEMINI_MODEL")

	setString(&cfg.Wallet.SessionSecret, "WALLET_SESSION_SECRET")
	if v := strings.TrimSpace(os.Getenv("WALLET_NETWORKS")); v != "" {
		cfg.Wallet.Networks = nil
		for _, n := range strings.Split(v, ",") {
			if n = strings.TrimSpace(n); n != "" {
				cfg.Wallet.Networks = append(cfg.Wallet.Networks, n)
			}
		}
	}

	if err := setFloat(&cfg.RateLimit.FundPerMinute, "RATE_LIMIT_FUND_PER_MINUTE"); err != nil {
		return err
	}
	if err := setFloat(&cfg.RateLimit.MediatePerMinute, "RATE_LIMIT_MEDIATE_PER_MINUTE"); err != nil {
		return err
	}

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	return nil
}

// Validate rejects configurations no command can run with. The session secret
// is only needed by serve and is checked by ValidateServe.
func (c Config) Validate() error {
	var problems []string
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		problems = append(problems, fmt.Sprintf("http.port %d is out of range", c.HTTP.Port))
	}
	if len(c.Wallet.Networks) == 0 {
		problems = append(problems, "wallet.networks must list at least one network")
	}
	if c.Mediation.Timeout <= 0 {
		problems = append(problems, "mediation.timeout must be positive")
	}
	if c.Aptos.NodeURL == "" || c.Aptos.FaucetURL == "" {
		problems = append(problems, "aptos.nodeUrl and aptos.faucetUrl are required")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be json or console", c.Logging.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateServe adds the checks that only matter when serving HTTP.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Wallet.SessionSecret) == "" {
		return errors.New("config: invalid: wallet.sessionSecret is required (WALLET_SESSION_SECRET)")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setPort(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	port, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: invalid %s value %q: %w", key, v, err)
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("config: port %d is out of range", port)
	}
	*dst = port
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setFloat(dst *float64, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("config: invalid %s: %w", key, err)
	}
	*dst = f
	return nil
}
