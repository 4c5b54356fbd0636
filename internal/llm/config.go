// Package llm wraps the language model used for suggestions and revisions.
package llm

import (
	"fmt"
	"time"
)

// ModelTier represents the capability level of a model
type ModelTier string

const (
	// TierLite is for quick suggestions
	TierLite ModelTier = "lite"
	// TierStandard is for detailed suggestions and revision prompts
	TierStandard ModelTier = "standard"
	// TierAdvanced is for rewriting document text
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider, the only one implemented.
const ProviderGemini Provider = "gemini"

// defaultTemperature keeps revisions close to the source text.
const defaultTemperature float32 = 0.2

// editorInstruction is sent as the system instruction with every request.
const editorInstruction = "You assist an author in revising their own writing. " +
	"Never invent citations, statistics, dates, names or quotations. " +
	"Answer in the language of the text you are given."

// TierProfile describes how requests for one tier are made.
type TierProfile struct {
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int32
}

// Config holds the model configuration
type Config struct {
	Provider          Provider
	Tiers             map[ModelTier]TierProfile
	Temperature       float32
	SystemInstruction string
}

// DefaultConfig returns the default Gemini configuration. Rewriting a whole
// document gets the largest model, budget and timeout.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Tiers: map[ModelTier]TierProfile{
			TierLite:     {Model: "gemini-2.5-flash-lite", Timeout: 20 * time.Second, MaxOutputTokens: 1024},
			TierStandard: {Model: "gemini-2.5-flash", Timeout: 45 * time.Second, MaxOutputTokens: 4096},
			TierAdvanced: {Model: "gemini-2.5-pro", Timeout: 2 * time.Minute, MaxOutputTokens: 16384},
		},
		Temperature:       defaultTemperature,
		SystemInstruction: editorInstruction,
	}
}

// fallbackOrder is consulted when a tier has no profile of its own.
var fallbackOrder = []ModelTier{TierStandard, TierLite}

// Profile returns the profile for tier, falling back to standard, then lite.
func (c *Config) Profile(tier ModelTier) (TierProfile, bool) {
	if p, ok := c.Tiers[tier]; ok && p.Model != "" {
		return p, true
	}
	for _, fb := range fallbackOrder {
		if p, ok := c.Tiers[fb]; ok && p.Model != "" {
			return p, true
		}
	}
	return TierProfile{}, false
}

// GetModel returns the model name used for tier, or "" when none is configured.
func (c *Config) GetModel(tier ModelTier) string {
	p, _ := c.Profile(tier)
	return p.Model
}

// Validate reports a configuration that cannot serve any request.
func (c *Config) Validate() error {
	if c.Provider != ProviderGemini {
		return fmt.Errorf("unsupported LLM provider %q", c.Provider)
	}
	if _, ok := c.Profile(TierStandard); !ok {
		return fmt.Errorf("no model configured")
	}
	for tier, p := range c.Tiers {
		if p.Timeout < 0 || p.MaxOutputTokens < 0 {
			return fmt.Errorf("tier %s: timeout and token budget must not be negative", tier)
		}
	}
	return nil
}
