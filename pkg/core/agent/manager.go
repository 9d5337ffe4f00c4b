package agent

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v2"

	"cubitai/pkg/core/llm"
)

// Config comes from config/models.yaml. Each named agent (fallback, summary,
// suggest) can pin a provider; otherwise the global active provider is used.
type Config struct {
	ActiveProvider string                 `yaml:"active_provider"`
	Agents         map[string]AgentConfig `yaml:"agents"`
}

type AgentConfig struct {
	Provider    string `yaml:"provider"` // optional override
	Model       string `yaml:"model"`    // optional model override
	Description string `yaml:"description"`
}

// LoadConfig parses models.yaml content. The returned Config is always usable:
// a parse failure (reported through the error) and empty input both fall back
// to gemini as the active provider.
func LoadConfig(data []byte) (Config, error) {
	var cfg Config
	err := yaml.Unmarshal(data, &cfg)
	if cfg.ActiveProvider == "" {
		cfg.ActiveProvider = "gemini"
	}
	return cfg, err
}

// Manager selects an llm.Provider per agent type and executes prompts.
type Manager struct {
	config    Config
	providers map[string]llm.Provider
}

func NewManager(config Config) *Manager {
	return &Manager{
		config: config,
		providers: map[string]llm.Provider{
			"openai":        &llm.OpenAIProvider{},
			"gemini":        &llm.GeminiProvider{},
			"gemini_legacy": &llm.GeminiLegacyProvider{},
		},
	}
}

// Providers lists the configured provider names.
func (m *Manager) Providers() []string {
	return []string{"openai", "gemini", "gemini_legacy"}
}

// GetProvider resolves the provider for an agent type: per-agent override
// first, then the global active provider, then gemini.
func (m *Manager) GetProvider(agentType string) llm.Provider {
	if agentConfig, ok := m.config.Agents[agentType]; ok && agentConfig.Provider != "" {
		if p, ok := m.providers[agentConfig.Provider]; ok {
			return p
		}
	}
	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return p
	}
	return m.providers["gemini"]
}

// ExecutePrompt runs one prompt through the agent's provider, applying any
// per-agent model override.
func (m *Manager) ExecutePrompt(ctx context.Context, agentType string, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	provider := m.GetProvider(agentType)

	if agentConfig, ok := m.config.Agents[agentType]; ok && agentConfig.Model != "" {
		if options == nil {
			options = map[string]interface{}{}
		}
		if _, set := options["model"]; !set {
			options["model"] = agentConfig.Model
		}
	}

	return provider.GenerateResponse(ctx, prompt, systemPrompt, options)
}

// SetGlobalProvider switches the active provider at runtime.
func (m *Manager) SetGlobalProvider(newProvider string) error {
	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	fmt.Printf("Global provider set to: %s\n", newProvider)
	return nil
}

func (m *Manager) GetActiveProvider() string {
	return m.config.ActiveProvider
}
