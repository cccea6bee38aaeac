package config

import (
	"fmt"
	"sync"

	"github.com/knadh/koanf/providers/file"
	engineconfig "github.com/robalyx/sentinel/internal/engine/config"
	"go.uber.org/zap"
)

// RuleProvider hands out validated ruleset snapshots per community and swaps
// them atomically on configuration reload. Communities without an override
// share the default detection snapshot; communities whose override fails
// validation get nil, which makes the engine fail closed for them.
type RuleProvider struct {
	logger *zap.Logger

	mu       sync.RWMutex
	fallback *engineconfig.RuleSet
	rules    map[string]*engineconfig.RuleSet
}

// NewRuleProvider compiles the configuration into ruleset snapshots.
func NewRuleProvider(cfg *Config, logger *zap.Logger) (*RuleProvider, error) {
	p := &RuleProvider{logger: logger.Named("rule_provider")}
	if err := p.rebuild(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// Rules returns the community's current snapshot, or nil when the community
// has no valid configuration.
func (p *RuleProvider) Rules(community string) *engineconfig.RuleSet {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if rs, ok := p.rules[community]; ok {
		return rs
	}
	return p.fallback
}

// Watch re-reads the config file whenever it changes and swaps the snapshots.
// A reload that fails validation keeps the previous snapshots in place.
func (p *RuleProvider) Watch(path string) error {
	provider := file.Provider(path)
	return provider.Watch(func(_ any, err error) {
		if err != nil {
			p.logger.Error("Config watch error", zap.Error(err))
			return
		}

		cfg, err := LoadConfigFile(path)
		if err != nil {
			p.logger.Error("Config reload failed, keeping previous snapshots", zap.Error(err))
			return
		}

		if err := p.rebuild(cfg); err != nil {
			p.logger.Error("Config reload rejected, keeping previous snapshots", zap.Error(err))
			return
		}
		p.logger.Info("Configuration reloaded", zap.String("path", path))
	})
}

func (p *RuleProvider) rebuild(cfg *Config) error {
	fallback, err := engineconfig.NewRuleSet(cfg.Detection)
	if err != nil {
		return fmt.Errorf("default detection config: %w", err)
	}

	rules := make(map[string]*engineconfig.RuleSet, len(cfg.Communities))
	for community, values := range cfg.Communities {
		rs, err := engineconfig.NewRuleSet(values)
		if err != nil {
			// Fail closed for this community only.
			p.logger.Error("Rejecting community detection config",
				zap.String("community", community),
				zap.Error(err))
			rules[community] = nil
			continue
		}
		rules[community] = rs
	}

	p.mu.Lock()
	p.fallback = fallback
	p.rules = rules
	p.mu.Unlock()
	return nil
}
