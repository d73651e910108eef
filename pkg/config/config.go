package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerAddr    string
	TrustProxy    bool
	MaxBodyBytes  int64    // bytes for session and event payloads
	CookieSecret  string   // HMAC key for the session cookie; random per process if empty
	SecureCookies bool     // set the Secure flag on the session cookie
	CORSOrigins   []string // allowed origins for the analyzer script
	Outputs       []string // enabled sinks: log, kafka, postgres
	TestMode      bool     // emit synthetic analysis reports to the sinks and exit

	RedisURL        string // persisted session records; in-memory when empty
	DatabaseURL     string // postgres DSN for the ingredient store
	IngredientStore string // memory or postgres

	LogLevel string
	LogFile  string // rotated JSON log file; console only when empty

	SessionIdleTimeout time.Duration
	PeerIPTimeout      time.Duration

	Detector Detector
}

// Detector holds the scoring thresholds and network toggles. Values come
// from defaults, then the DETECTOR_CONFIG yaml file, then the environment.
type Detector struct {
	PointerThreshold     float64 `yaml:"pointer_threshold"`
	ScrollThreshold      float64 `yaml:"scroll_threshold"`
	KeystrokeThreshold   float64 `yaml:"keystroke_threshold"`
	InteractionThreshold float64 `yaml:"interaction_threshold"`
	MaxCopyPaste         int     `yaml:"max_copy_paste"`
	MinFocusRatio        float64 `yaml:"min_focus_ratio"`

	BlockKnownProxies       bool `yaml:"block_known_proxies"`
	CheckWebRTC             bool `yaml:"check_webrtc"`
	TCPFingerprintingStrict bool `yaml:"tcp_fingerprinting_strict"`
	CheckConnectionSpeed    bool `yaml:"check_connection_speed"`
}

func DefaultDetector() Detector {
	return Detector{
		PointerThreshold:        0.6,
		ScrollThreshold:         0.4,
		KeystrokeThreshold:      0.7,
		InteractionThreshold:    0.5,
		MaxCopyPaste:            5,
		MinFocusRatio:           0.4,
		BlockKnownProxies:       true,
		CheckWebRTC:             true,
		TCPFingerprintingStrict: true,
		CheckConnectionSpeed:    true,
	}
}

func getOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func getBool(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	switch v {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	}
	return def
}
func getInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
func getFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}
func getDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

func getStringSlice(k, def string) []string {
	v := os.Getenv(k)
	if v == "" {
		v = def
	}
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Load reads a .env file if present, then the environment. It only fails when
// DETECTOR_CONFIG names a file that cannot be read or parsed.
func Load() (Config, error) {
	_ = godotenv.Load()

	det, err := loadDetector(os.Getenv("DETECTOR_CONFIG"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		ServerAddr:    getOr("SERVER_ADDR", ":19890"),
		TrustProxy:    getBool("TRUST_PROXY", false),
		MaxBodyBytes:  getInt64("MAX_BODY_BYTES", 1<<20), // 1 MiB default
		CookieSecret:  getOr("COOKIE_SECRET", ""),
		SecureCookies: getBool("SECURE_COOKIES", false),
		CORSOrigins:   getStringSlice("CORS_ORIGINS", "*"),
		Outputs:       getStringSlice("OUTPUTS", "log"), // default to log only
		TestMode:      getBool("TEST_MODE", false),

		RedisURL:        getOr("REDIS_URL", ""),
		DatabaseURL:     getOr("DATABASE_URL", ""),
		IngredientStore: getOr("INGREDIENT_STORE", "memory"),

		LogLevel: getOr("LOG_LEVEL", "info"),
		LogFile:  getOr("LOG_FILE", ""),

		SessionIdleTimeout: getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		PeerIPTimeout:      getDuration("PEER_IP_TIMEOUT", 5*time.Second),

		Detector: det,
	}, nil
}

func loadDetector(path string) (Detector, error) {
	d := DefaultDetector()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Detector{}, fmt.Errorf("config: read detector config: %w", err)
		}
		if err := yaml.Unmarshal(b, &d); err != nil {
			return Detector{}, fmt.Errorf("config: parse detector config %s: %w", path, err)
		}
	}

	d.PointerThreshold = getFloat("POINTER_THRESHOLD", d.PointerThreshold)
	d.ScrollThreshold = getFloat("SCROLL_THRESHOLD", d.ScrollThreshold)
	d.KeystrokeThreshold = getFloat("KEYSTROKE_THRESHOLD", d.KeystrokeThreshold)
	d.InteractionThreshold = getFloat("INTERACTION_THRESHOLD", d.InteractionThreshold)
	d.MaxCopyPaste = int(getInt64("MAX_COPY_PASTE", int64(d.MaxCopyPaste)))
	d.MinFocusRatio = getFloat("MIN_FOCUS_RATIO", d.MinFocusRatio)

	d.BlockKnownProxies = getBool("BLOCK_KNOWN_PROXIES", d.BlockKnownProxies)
	d.CheckWebRTC = getBool("CHECK_WEBRTC", d.CheckWebRTC)
	d.TCPFingerprintingStrict = getBool("TCP_FINGERPRINTING_STRICT", d.TCPFingerprintingStrict)
	d.CheckConnectionSpeed = getBool("CHECK_CONNECTION_SPEED", d.CheckConnectionSpeed)

	return d, nil
}
