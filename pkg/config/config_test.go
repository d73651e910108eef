package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetters(t *testing.T) {
	t.Run("getOr", func(t *testing.T) {
		t.Setenv("BS_TEST_STR", "from_env")
		if got := getOr("BS_TEST_STR", "default"); got != "from_env" {
			t.Errorf("getOr() = %q, want from_env", got)
		}
		if got := getOr("BS_TEST_STR_UNSET", "default"); got != "default" {
			t.Errorf("getOr() = %q, want default", got)
		}
	})

	t.Run("getBool", func(t *testing.T) {
		tests := []struct {
			env  string
			def  bool
			want bool
		}{
			{"1", false, true},
			{"true", false, true},
			{" Yes ", false, true},
			{"TRUE", false, true},
			{"0", true, false},
			{"no", true, false},
			{"FALSE", true, false},
			{"", true, true},
			{"maybe", false, false},
		}
		for _, tt := range tests {
			t.Setenv("BS_TEST_BOOL", tt.env)
			if got := getBool("BS_TEST_BOOL", tt.def); got != tt.want {
				t.Errorf("getBool(%q, %v) = %v, want %v", tt.env, tt.def, got, tt.want)
			}
		}
	})

	t.Run("getInt64", func(t *testing.T) {
		tests := []struct {
			env  string
			def  int64
			want int64
		}{
			{"12345", 0, 12345},
			{"-999", 0, -999},
			{"0", 100, 0},
			{"", 42, 42},
			{"not_a_number", 99, 99},
		}
		for _, tt := range tests {
			t.Setenv("BS_TEST_INT", tt.env)
			if got := getInt64("BS_TEST_INT", tt.def); got != tt.want {
				t.Errorf("getInt64(%q) = %d, want %d", tt.env, got, tt.want)
			}
		}
	})

	t.Run("getFloat", func(t *testing.T) {
		tests := []struct {
			env  string
			def  float64
			want float64
		}{
			{"0.25", 0.6, 0.25},
			{" 1 ", 0, 1},
			{"", 0.6, 0.6},
			{"high", 0.4, 0.4},
		}
		for _, tt := range tests {
			t.Setenv("BS_TEST_FLOAT", tt.env)
			if got := getFloat("BS_TEST_FLOAT", tt.def); got != tt.want {
				t.Errorf("getFloat(%q) = %v, want %v", tt.env, got, tt.want)
			}
		}
	})

	t.Run("getDuration", func(t *testing.T) {
		tests := []struct {
			env  string
			def  time.Duration
			want time.Duration
		}{
			{"250ms", time.Second, 250 * time.Millisecond},
			{"10m", time.Second, 10 * time.Minute},
			{"", 5 * time.Second, 5 * time.Second},
			{"soon", 5 * time.Second, 5 * time.Second},
		}
		for _, tt := range tests {
			t.Setenv("BS_TEST_DUR", tt.env)
			if got := getDuration("BS_TEST_DUR", tt.def); got != tt.want {
				t.Errorf("getDuration(%q) = %v, want %v", tt.env, got, tt.want)
			}
		}
	})

	t.Run("getStringSlice", func(t *testing.T) {
		tests := []struct {
			name string
			env  string
			def  string
			want []string
		}{
			{"comma separated", "log,kafka,postgres", "", []string{"log", "kafka", "postgres"}},
			{"trims whitespace", " log , kafka ", "", []string{"log", "kafka"}},
			{"default", "", "a,b", []string{"a", "b"}},
			{"both empty", "", "", nil},
			{"filters empty items", "log,,kafka,  ,", "", []string{"log", "kafka"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Setenv("BS_TEST_SLICE", tt.env)
				got := getStringSlice("BS_TEST_SLICE", tt.def)
				if len(got) != len(tt.want) {
					t.Fatalf("getStringSlice() = %v, want %v", got, tt.want)
				}
				for i := range got {
					if got[i] != tt.want[i] {
						t.Errorf("getStringSlice()[%d] = %q, want %q", i, got[i], tt.want[i])
					}
				}
			})
		}
	})
}

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

var loadKeys = []string{
	"SERVER_ADDR", "TRUST_PROXY", "MAX_BODY_BYTES", "COOKIE_SECRET", "SECURE_COOKIES",
	"CORS_ORIGINS", "OUTPUTS", "TEST_MODE", "REDIS_URL", "DATABASE_URL", "INGREDIENT_STORE",
	"LOG_LEVEL", "LOG_FILE", "SESSION_IDLE_TIMEOUT", "PEER_IP_TIMEOUT", "DETECTOR_CONFIG",
	"POINTER_THRESHOLD", "SCROLL_THRESHOLD", "KEYSTROKE_THRESHOLD", "INTERACTION_THRESHOLD",
	"MAX_COPY_PASTE", "MIN_FOCUS_RATIO", "BLOCK_KNOWN_PROXIES", "CHECK_WEBRTC",
	"TCP_FINGERPRINTING_STRICT", "CHECK_CONNECTION_SPEED",
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t, loadKeys...)
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.ServerAddr != ":19890" {
			t.Errorf("ServerAddr = %q, want :19890", cfg.ServerAddr)
		}
		if cfg.MaxBodyBytes != 1<<20 {
			t.Errorf("MaxBodyBytes = %d, want %d", cfg.MaxBodyBytes, 1<<20)
		}
		if len(cfg.Outputs) != 1 || cfg.Outputs[0] != "log" {
			t.Errorf("Outputs = %v, want [log]", cfg.Outputs)
		}
		if cfg.IngredientStore != "memory" {
			t.Errorf("IngredientStore = %q, want memory", cfg.IngredientStore)
		}
		if cfg.SessionIdleTimeout != 30*time.Minute || cfg.PeerIPTimeout != 5*time.Second {
			t.Errorf("timeouts = %v / %v", cfg.SessionIdleTimeout, cfg.PeerIPTimeout)
		}
		if cfg.Detector != DefaultDetector() {
			t.Errorf("Detector = %+v, want defaults", cfg.Detector)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		clearEnv(t, loadKeys...)
		t.Setenv("SERVER_ADDR", ":8080")
		t.Setenv("OUTPUTS", "kafka,postgres")
		t.Setenv("TEST_MODE", "yes")
		t.Setenv("POINTER_THRESHOLD", "0.75")
		t.Setenv("MAX_COPY_PASTE", "10")
		t.Setenv("CHECK_CONNECTION_SPEED", "false")
		t.Setenv("PEER_IP_TIMEOUT", "2s")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.ServerAddr != ":8080" || !cfg.TestMode {
			t.Errorf("cfg = %+v", cfg)
		}
		if len(cfg.Outputs) != 2 || cfg.Outputs[1] != "postgres" {
			t.Errorf("Outputs = %v", cfg.Outputs)
		}
		if cfg.Detector.PointerThreshold != 0.75 || cfg.Detector.MaxCopyPaste != 10 {
			t.Errorf("Detector = %+v", cfg.Detector)
		}
		if cfg.Detector.CheckConnectionSpeed {
			t.Error("CheckConnectionSpeed = true, want false")
		}
		if cfg.PeerIPTimeout != 2*time.Second {
			t.Errorf("PeerIPTimeout = %v, want 2s", cfg.PeerIPTimeout)
		}
	})

	t.Run("yaml overlay below environment", func(t *testing.T) {
		clearEnv(t, loadKeys...)
		path := filepath.Join(t.TempDir(), "detector.yaml")
		yml := "pointer_threshold: 0.5\nscroll_threshold: 0.3\ncheck_webrtc: false\n"
		if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv("DETECTOR_CONFIG", path)
		t.Setenv("SCROLL_THRESHOLD", "0.35")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		d := cfg.Detector
		if d.PointerThreshold != 0.5 {
			t.Errorf("PointerThreshold = %v, want 0.5 from yaml", d.PointerThreshold)
		}
		if d.ScrollThreshold != 0.35 {
			t.Errorf("ScrollThreshold = %v, want 0.35 from env", d.ScrollThreshold)
		}
		if d.CheckWebRTC {
			t.Error("CheckWebRTC = true, want false from yaml")
		}
		if d.KeystrokeThreshold != 0.7 {
			t.Errorf("KeystrokeThreshold = %v, want default 0.7", d.KeystrokeThreshold)
		}
	})

	t.Run("bad yaml", func(t *testing.T) {
		clearEnv(t, loadKeys...)
		path := filepath.Join(t.TempDir(), "detector.yaml")
		if err := os.WriteFile(path, []byte("pointer_threshold: [oops"), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv("DETECTOR_CONFIG", path)
		if _, err := Load(); err == nil {
			t.Error("Load() accepted malformed yaml")
		}
	})

	t.Run("missing yaml", func(t *testing.T) {
		clearEnv(t, loadKeys...)
		t.Setenv("DETECTOR_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
		if _, err := Load(); err == nil {
			t.Error("Load() accepted a missing detector config")
		}
	})
}
