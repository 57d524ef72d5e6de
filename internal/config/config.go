package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/Vovarama1992/meta-ai-router/internal/ai"
	"github.com/Vovarama1992/meta-ai-router/internal/classify"
)

const (
	DefaultPort            = "8080"
	DefaultProviderTimeout = 20 * time.Second
	DefaultSessionIdleTTL  = 24 * time.Hour
)

type Config struct {
	Port        string
	DatabaseURL string

	ProviderTimeout time.Duration
	RouterFallback  bool
	// CORSOrigins lists the origins allowed to call the API. The default
	// "*" is meant for same-origin deployments: browsers never send the
	// session cookie cross-origin to a wildcard.
	CORSOrigins []string

	// SessionIdleTTL evicts sessions untouched for this long from memory;
	// zero keeps them for the life of the process.
	SessionIdleTTL time.Duration

	LogFile       string
	ProvidersFile string

	// Providers is the registry table in registration order, with API keys
	// already resolved from the environment.
	Providers []ai.Spec
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getenv("PORT", DefaultPort),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ProviderTimeout: DefaultProviderTimeout,
		SessionIdleTTL:  DefaultSessionIdleTTL,
		CORSOrigins:     splitList(getenv("CORS_ORIGINS", "*")),
		LogFile:         os.Getenv("LOG_FILE"),
		ProvidersFile:   os.Getenv("PROVIDERS_FILE"),
	}

	if v := os.Getenv("PROVIDER_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PROVIDER_TIMEOUT: %w", err)
		}
		cfg.ProviderTimeout = d
	}

	if v := os.Getenv("SESSION_IDLE_TTL"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SESSION_IDLE_TTL: %w", err)
		}
		cfg.SessionIdleTTL = d
	}

	if v := os.Getenv("ROUTER_FALLBACK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("ROUTER_FALLBACK: %w", err)
		}
		cfg.RouterFallback = b
	}

	specs := ai.DefaultSpecs()
	if cfg.ProvidersFile != "" {
		var err error
		specs, err = LoadProviders(specs, cfg.ProvidersFile)
		if err != nil {
			return nil, err
		}
	}
	cfg.Providers = resolveProviders(specs)

	return cfg, nil
}

// CORSAllowCredentials reports whether cross-origin requests may carry the
// session cookie. Only an explicit origin list qualifies; credentials are
// never combined with a wildcard.
func (c *Config) CORSAllowCredentials() bool {
	if len(c.CORSOrigins) == 0 {
		return false
	}
	for _, o := range c.CORSOrigins {
		if o == "*" || strings.Contains(o, "*") {
			return false
		}
	}
	return true
}

// parseDuration accepts Go durations ("15s") and bare seconds ("15").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %q", v)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", v)
	}
	return d, nil
}

// resolveProviders fills API keys and model overrides from the environment.
// <ID>_MODEL overrides the model of a provider, e.g. OPENAI_MODEL.
func resolveProviders(specs []ai.Spec) []ai.Spec {
	out := make([]ai.Spec, len(specs))
	for i, s := range specs {
		if s.APIKey == "" && s.APIKeyEnv != "" {
			s.APIKey = strings.TrimSpace(os.Getenv(s.APIKeyEnv))
		}
		if m := os.Getenv(envName(s.ID) + "_MODEL"); m != "" {
			s.Model = m
		}
		out[i] = s
	}
	return out
}

func envName(id string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(id))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// providersFile is the TOML layout of PROVIDERS_FILE:
//
//	[[provider]]
//	id = "openai"
//	quality = 0.95
//	model = "gpt-4o"
//
//	[[provider]]
//	id = "local_echo"
//	disabled = true
type providersFile struct {
	Provider []providerEntry `toml:"provider"`
}

type providerEntry struct {
	Kind          string   `toml:"kind"`
	ID            string   `toml:"id"`
	Name          string   `toml:"name"`
	Strengths     []string `toml:"strengths"`
	Quality       *float64 `toml:"quality"`
	APIKeyEnv     string   `toml:"api_key_env"`
	Model         string   `toml:"model"`
	BaseURL       string   `toml:"base_url"`
	MaxTokens     int      `toml:"max_tokens"`
	RatePerMinute float64  `toml:"rate_per_minute"`
	Disabled      bool     `toml:"disabled"`
}

// LoadProviders applies the entries of a TOML providers file to base. An
// entry whose id is already present overrides the fields it sets; a new id
// is appended and must name its kind and quality; disabled removes it.
func LoadProviders(base []ai.Spec, path string) ([]ai.Spec, error) {
	var f providersFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("providers file %s: %w", path, err)
	}

	specs := append([]ai.Spec(nil), base...)
	for _, e := range f.Provider {
		if e.ID == "" {
			return nil, fmt.Errorf("providers file %s: entry without id", path)
		}

		idx := -1
		for i := range specs {
			if specs[i].ID == e.ID {
				idx = i
				break
			}
		}

		if e.Disabled {
			if idx >= 0 {
				specs = append(specs[:idx], specs[idx+1:]...)
			}
			continue
		}

		if idx < 0 {
			if e.Kind == "" || e.Quality == nil {
				return nil, fmt.Errorf("providers file %s: new provider %q needs kind and quality", path, e.ID)
			}
			specs = append(specs, ai.Spec{ID: e.ID})
			idx = len(specs) - 1
		}

		if err := e.apply(&specs[idx]); err != nil {
			return nil, fmt.Errorf("providers file %s: %w", path, err)
		}
	}
	return specs, nil
}

func (e providerEntry) apply(s *ai.Spec) error {
	if e.Kind != "" {
		s.Kind = ai.Kind(e.Kind)
	}
	if e.Name != "" {
		s.DisplayName = e.Name
	}
	if e.Strengths != nil {
		cats := make([]classify.Category, 0, len(e.Strengths))
		for _, raw := range e.Strengths {
			c, err := classify.ParseCategory(raw)
			if err != nil {
				return fmt.Errorf("provider %s: %w", e.ID, err)
			}
			cats = append(cats, c)
		}
		s.Strengths = cats
	}
	if e.Quality != nil {
		s.Quality = *e.Quality
	}
	if e.APIKeyEnv != "" {
		s.APIKeyEnv = e.APIKeyEnv
	}
	if e.Model != "" {
		s.Model = e.Model
	}
	if e.BaseURL != "" {
		s.BaseURL = e.BaseURL
	}
	if e.MaxTokens > 0 {
		s.MaxTokens = e.MaxTokens
	}
	if e.RatePerMinute > 0 {
		s.RatePerMinute = e.RatePerMinute
	}
	return nil
}
