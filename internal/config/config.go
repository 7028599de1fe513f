// Package config resolves process configuration from the environment.
//
// An optional .env file is loaded first (values already present in the
// environment win), then every setting is read from SKETCHFLOW_* and the
// identity-provider variables. Nothing here talks to the network except the
// optional SSM lookup in ResolveSecrets.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Defaults observed in production.
const (
	DefaultAPIBase        = "http://localhost:8000"
	DefaultPlantUMLServer = "https://www.plantuml.com/plantuml"
	DefaultMermaidRender  = "https://mermaid.ink"
	DefaultDrawioViewer   = "https://viewer.diagrams.net/"
	DefaultDrawioEditor   = "https://app.diagrams.net/"
	DefaultConvertTimeout = 300 * time.Second
	DefaultMMDCTimeout    = 30 * time.Second
	DefaultCallbackAddr   = "127.0.0.1:8765"
	DefaultCallbackPath   = "/auth/callback"
)

// Config holds every externally supplied setting.
type Config struct {
	APIBase string

	SupabaseURL     string
	SupabaseAnonKey string
	// AnonKeyParam is an SSM parameter name consulted when SupabaseAnonKey is empty.
	AnonKeyParam string
	SessionFile  string
	CallbackAddr string
	CallbackPath string

	PlantUMLServer  string
	MermaidRender   string
	MMDCBin         string
	MMDCTimeout     time.Duration
	DrawioViewerURL string
	DrawioEditorURL string

	ConvertTimeout time.Duration

	RedirectRedisURL string

	AdsEnabled bool
	AdsConsent bool
}

// AuthConfigured reports whether both identity-provider settings are present.
func (c *Config) AuthConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}

// CallbackURL is the loopback redirect target registered with the identity provider.
func (c *Config) CallbackURL() string {
	return "http://" + c.CallbackAddr + c.CallbackPath
}

// Load reads the optional .env file and the environment.
func Load() *Config {
	loadEnvFile(getenv("SKETCHFLOW_ENV_FILE", ".env"))

	return &Config{
		APIBase:          strings.TrimRight(getenv("SKETCHFLOW_API_BASE", DefaultAPIBase), "/"),
		SupabaseURL:      strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseAnonKey:  os.Getenv("SUPABASE_ANON_KEY"),
		AnonKeyParam:     os.Getenv("SKETCHFLOW_SSM_ANON_KEY_PARAM"),
		SessionFile:      getenv("SKETCHFLOW_SESSION_FILE", defaultSessionFile()),
		CallbackAddr:     getenv("SKETCHFLOW_CALLBACK_ADDR", DefaultCallbackAddr),
		CallbackPath:     getenv("SKETCHFLOW_CALLBACK_PATH", DefaultCallbackPath),
		PlantUMLServer:   strings.TrimRight(getenv("PLANTUML_SERVER", DefaultPlantUMLServer), "/"),
		MermaidRender:    strings.TrimRight(getenv("MERMAID_RENDER_URL", DefaultMermaidRender), "/"),
		MMDCBin:          getenv("MMDC_BIN", "mmdc"),
		MMDCTimeout:      getSeconds("MMDC_TIMEOUT_SEC", DefaultMMDCTimeout),
		DrawioViewerURL:  getenv("DRAWIO_VIEWER_URL", DefaultDrawioViewer),
		DrawioEditorURL:  getenv("DRAWIO_EDITOR_URL", DefaultDrawioEditor),
		ConvertTimeout:   getDuration("SKETCHFLOW_CONVERT_TIMEOUT", DefaultConvertTimeout),
		RedirectRedisURL: os.Getenv("SKETCHFLOW_REDIRECT_REDIS_URL"),
		AdsEnabled:       getBool("SKETCHFLOW_ADS_ENABLED", false),
		AdsConsent:       getBool("SKETCHFLOW_ADS_CONSENT", false),
	}
}

// loadEnvFile copies values from path into the environment for keys that are
// unset or blank, the same rule getenv uses.
func loadEnvFile(path string) {
	values, err := godotenv.Read(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", path).Msg("Failed to load env file, continuing with process environment")
		}
		return
	}
	for k, v := range values {
		if strings.TrimSpace(os.Getenv(k)) != "" {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			log.Warn().Err(err).Str("key", k).Msg("Failed to apply env file value")
		}
	}
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".sketchflow", "session.json")
	}
	return filepath.Join(home, ".sketchflow", "session.json")
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid boolean, using default")
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration, using default")
		return def
	}
	return d
}

func getSeconds(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid seconds value, using default")
		return def
	}
	return time.Duration(n) * time.Second
}
