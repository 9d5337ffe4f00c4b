package agent

import (
	"testing"
)

func TestLoadConfig(t *testing.T) {
	data := []byte(`active_provider: openai
agents:
  fallback:
    provider: gemini
    model: gemini-2.0-flash-exp
`)

	cfg, err := LoadConfig(data)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ActiveProvider != "openai" {
		t.Errorf("Expected active provider openai, got %q", cfg.ActiveProvider)
	}
	if cfg.Agents["fallback"].Provider != "gemini" || cfg.Agents["fallback"].Model != "gemini-2.0-flash-exp" {
		t.Errorf("Unexpected fallback agent config: %+v", cfg.Agents["fallback"])
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	cfg, err := LoadConfig([]byte("active_provider: [unclosed"))
	if err == nil {
		t.Error("Expected a parse error for malformed yaml")
	}
	// The config must still be usable after a parse failure.
	if cfg.ActiveProvider != "gemini" {
		t.Errorf("Expected gemini default after parse failure, got %q", cfg.ActiveProvider)
	}
}

func TestLoadConfigEmptyDefaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("Empty input should not error, got %v", err)
	}
	if cfg.ActiveProvider != "gemini" {
		t.Errorf("Expected gemini default, got %q", cfg.ActiveProvider)
	}
}

func TestGetProviderResolution(t *testing.T) {
	cfg := Config{
		ActiveProvider: "openai",
		Agents: map[string]AgentConfig{
			"summary": {Provider: "gemini_legacy"},
		},
	}
	m := NewManager(cfg)

	// Per-agent override wins.
	if p := m.GetProvider("summary"); p != m.providers["gemini_legacy"] {
		t.Error("Expected the summary agent to use its pinned provider")
	}
	// Agents without an override use the global active provider.
	if p := m.GetProvider("fallback"); p != m.providers["openai"] {
		t.Error("Expected the fallback agent to use the active provider")
	}

	// Unknown active provider degrades to gemini.
	m2 := NewManager(Config{ActiveProvider: "nonexistent"})
	if p := m2.GetProvider("fallback"); p != m2.providers["gemini"] {
		t.Error("Expected gemini when the active provider is unknown")
	}
}

func TestSetGlobalProvider(t *testing.T) {
	m := NewManager(Config{ActiveProvider: "gemini"})

	if err := m.SetGlobalProvider("openai"); err != nil {
		t.Fatalf("Switching to openai failed: %v", err)
	}
	if m.GetActiveProvider() != "openai" {
		t.Errorf("Expected openai active, got %q", m.GetActiveProvider())
	}

	if err := m.SetGlobalProvider("nonexistent"); err == nil {
		t.Error("Expected an error for an unknown provider")
	}
}
