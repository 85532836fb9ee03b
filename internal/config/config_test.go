package config

import "testing"

func TestLoadServerConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig err: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Addr)
	}
}

func TestLoadServerConfigAcceptsFullAddr(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")

	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig err: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %s", cfg.Addr)
	}
}

func TestLoadServerConfigRejectsGarbage(t *testing.T) {
	t.Setenv("PORT", "80 80")

	if _, err := loadServerConfig(); err == nil {
		t.Fatal("expected error for PORT with spaces")
	}
}

func TestAIConfigEnabled(t *testing.T) {
	cases := []struct {
		name string
		cfg  AIConfig
		want bool
	}{
		{"api key", AIConfig{Model: "m", APIKey: "k"}, true},
		{"ak/sk pair", AIConfig{Model: "m", AccessKey: "a", SecretKey: "s"}, true},
		{"missing model", AIConfig{APIKey: "k"}, false},
		{"missing credentials", AIConfig{Model: "m"}, false},
		{"incomplete pair", AIConfig{Model: "m", AccessKey: "a"}, false},
	}

	for _, tc := range cases {
		if got := tc.cfg.Enabled(); got != tc.want {
			t.Fatalf("%s: Enabled() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestLoadAIConfigStreamToggle(t *testing.T) {
	t.Setenv("ARK_STREAM", "")
	cfg, err := loadAIConfig()
	if err != nil {
		t.Fatalf("loadAIConfig err: %v", err)
	}
	if !cfg.Stream {
		t.Fatal("expected streaming enabled by default")
	}

	t.Setenv("ARK_STREAM", "false")
	cfg, err = loadAIConfig()
	if err != nil {
		t.Fatalf("loadAIConfig err: %v", err)
	}
	if cfg.Stream {
		t.Fatal("expected streaming disabled via ARK_STREAM=false")
	}

	t.Setenv("ARK_STREAM", "maybe")
	if _, err := loadAIConfig(); err == nil {
		t.Fatal("expected error for invalid ARK_STREAM value")
	}
}

func TestParseOptionalFloatEnv(t *testing.T) {
	t.Setenv("ARK_TEMPERATURE", "0.7")

	val, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		t.Fatalf("parseOptionalFloatEnv err: %v", err)
	}
	if val == nil || *val != 0.7 {
		t.Fatalf("unexpected value %v", val)
	}

	t.Setenv("ARK_TEMPERATURE", "warm")
	if _, err := parseOptionalFloatEnv("ARK_TEMPERATURE"); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
}
