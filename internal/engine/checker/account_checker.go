package checker

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/robalyx/sentinel/internal/engine/config"
	"github.com/robalyx/sentinel/internal/engine/types"
	"go.uber.org/zap"
)

// botTerms are name fragments commonly carried by throwaway automation accounts.
var botTerms = []string{"bot", "auto", "spam", "promo", "ad"}

// AccountChecker scores a joining or posting account's profile for
// bot-likeness. Scores are deterministic given the profile, ruleset, and
// injected now; the checker keeps no state.
type AccountChecker struct {
	logger *zap.Logger
}

// NewAccountChecker creates an AccountChecker.
func NewAccountChecker(logger *zap.Logger) *AccountChecker {
	return &AccountChecker{
		logger: logger.Named("account_checker"),
	}
}

// Score returns the account's bot-likeness in [0,1] as the weighted sum of
// the age, username, avatar, and join-proximity sub-signals. It returns
// ErrCallerMisuse when invoked on an exempt actor or without a profile.
func (c *AccountChecker) Score(actorID string, profile *types.Profile, rs *config.RuleSet, now time.Time) (float64, error) {
	if profile == nil {
		return 0, fmt.Errorf("%w: account scoring requires a profile snapshot", ErrCallerMisuse)
	}
	if IsExempt(actorID, profile, rs) {
		return 0, fmt.Errorf("%w: account scoring invoked on exempt actor %s", ErrCallerMisuse, actorID)
	}

	cfg := rs.Account()
	if !cfg.Enabled {
		return 0, nil
	}

	w := cfg.Weights
	score := w.Age*ageSignal(profile, cfg, now) +
		w.Username*c.usernameSignal(profile.DisplayName, rs) +
		w.Avatar*avatarSignal(profile) +
		w.JoinProximity*joinProximitySignal(profile, cfg)

	return clamp01(score), nil
}

// ageSignal approaches 1 for brand-new accounts and 0 at the safe age.
// A missing creation timestamp is treated as maximally suspicious.
func ageSignal(profile *types.Profile, cfg config.AccountValues, now time.Time) float64 {
	if profile.CreatedAt.IsZero() {
		return 1
	}
	ageDays := now.Sub(profile.CreatedAt).Hours() / 24
	return clamp01(1 - ageDays/cfg.MinSafeAgeDays)
}

// usernameSignal is 1 when the name matches a configured suspicious pattern.
// Otherwise the heuristics inherited from the original detector apply: short
// names, digit-only names, random-looking sequences, and bot-term fragments
// each contribute points, scaled into [0,1].
func (c *AccountChecker) usernameSignal(name string, rs *config.RuleSet) float64 {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return 1
	}
	if rs.MatchesUsername(lower) {
		return 1
	}

	var points float64
	if len(lower) <= 2 {
		points++
	}
	if isDigitsOnly(lower) {
		points += 2
	}
	if looksRandom(lower) {
		points += 2
	}
	for _, term := range botTerms {
		if strings.Contains(lower, term) {
			points++
			break
		}
	}

	return clamp01(points / 3)
}

func avatarSignal(profile *types.Profile) float64 {
	if profile.HasAvatar {
		return 0
	}
	return 1
}

// joinProximitySignal flags accounts that joined almost immediately after
// creation, a hallmark of accounts made for a raid.
func joinProximitySignal(profile *types.Profile, cfg config.AccountValues) float64 {
	if cfg.JoinProximityMins <= 0 || profile.CreatedAt.IsZero() || profile.JoinedAt.IsZero() {
		return 0
	}
	gapMins := profile.JoinedAt.Sub(profile.CreatedAt).Minutes()
	if gapMins < 0 {
		return 0
	}
	return clamp01(1 - gapMins/cfg.JoinProximityMins)
}

func isDigitsOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// looksRandom applies the character-distribution heuristics from the original
// detector: vowel-free names, consonant-heavy names, and names with very low
// character diversity.
func looksRandom(s string) bool {
	if len(s) < 4 {
		return false
	}

	var vowels, consonants int
	distinct := make(map[rune]struct{}, len(s))
	for _, r := range s {
		distinct[r] = struct{}{}
		switch {
		case strings.ContainsRune("aeiou", r):
			vowels++
		case r >= 'a' && r <= 'z':
			consonants++
		}
	}

	if vowels == 0 {
		return true
	}
	if float64(consonants) > float64(len(s))*0.8 {
		return true
	}
	return float64(len(distinct)) < float64(len(s))*0.4
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
