package config

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrInvalidConfig indicates a malformed or inconsistent detection configuration.
	ErrInvalidConfig = errors.New("invalid detection configuration")
	// ErrConfigUnavailable indicates no configuration snapshot exists for a community.
	ErrConfigUnavailable = errors.New("no detection configuration available")
)

const (
	// PolicyDenylist trips the link signal when a domain matches the denylist.
	PolicyDenylist = "denylist"
	// PolicyAllowlist trips the link signal when a domain is absent from the allowlist.
	PolicyAllowlist = "allowlist"

	// WeightTolerance is how far a weight sum may drift from 1.
	WeightTolerance = 1e-6
)

// RuleSet is an immutable, validated snapshot of one community's detection
// configuration. Patterns are compiled exactly once, when the snapshot is
// built; per-event calls never recompile.
type RuleSet struct {
	values Values

	usernamePatterns []*regexp.Regexp
	phrasePatterns   []*regexp.Regexp
	domainDeny       map[string]struct{}
	domainAllow      map[string]struct{}
	trustedUsers     map[string]struct{}
	trustedRoles     map[string]struct{}
}

// NewRuleSet validates and compiles raw values into a RuleSet. A nil error
// guarantees every scorer invariant holds: weights sum to 1 within tolerance,
// stage thresholds are strictly increasing, the decay factor is in (0,1), and
// every pattern compiles.
func NewRuleSet(v Values) (*RuleSet, error) {
	if v.Account.Enabled {
		w := v.Account.Weights
		if err := checkWeightSum("account", w.Age, w.Username, w.Avatar, w.JoinProximity); err != nil {
			return nil, err
		}
		if v.Account.MinSafeAgeDays <= 0 {
			return nil, fmt.Errorf("%w: account min_safe_age_days must be positive", ErrInvalidConfig)
		}
	}

	if v.Message.Enabled {
		w := v.Message.Weights
		if err := checkWeightSum("message", w.Rate, w.Duplicate, w.Mention, w.Link, w.Phrase); err != nil {
			return nil, err
		}
		if v.Message.MaxPerWindow <= 0 || v.Message.WindowSeconds <= 0 {
			return nil, fmt.Errorf("%w: message window limits must be positive", ErrInvalidConfig)
		}
		if v.Message.MaxMentions <= 0 {
			return nil, fmt.Errorf("%w: message max_mentions must be positive", ErrInvalidConfig)
		}
		switch v.Message.DomainPolicy {
		case PolicyDenylist, PolicyAllowlist:
		default:
			return nil, fmt.Errorf("%w: unknown domain policy %q", ErrInvalidConfig, v.Message.DomainPolicy)
		}
	}

	if v.Raid.Enabled {
		if v.Raid.JoinThreshold <= 0 || v.Raid.WindowSeconds <= 0 {
			return nil, fmt.Errorf("%w: raid thresholds must be positive", ErrInvalidConfig)
		}
		if v.Raid.LiftWindowSeconds <= 0 || v.Raid.LiftThreshold <= 0 || v.Raid.LiftSustainSeconds <= 0 {
			return nil, fmt.Errorf("%w: raid lift rule must be fully configured", ErrInvalidConfig)
		}
	}

	esc := v.Escalation
	if esc.DecayFactor <= 0 || esc.DecayFactor >= 1 {
		return nil, fmt.Errorf("%w: decay_factor must be in (0,1), got %g", ErrInvalidConfig, esc.DecayFactor)
	}
	if !(esc.FlagThreshold < esc.QuarantineThreshold && esc.QuarantineThreshold < esc.BanThreshold) {
		return nil, fmt.Errorf(
			"%w: stage thresholds must be strictly increasing (flag=%g quarantine=%g ban=%g)",
			ErrInvalidConfig, esc.FlagThreshold, esc.QuarantineThreshold, esc.BanThreshold,
		)
	}

	rs := &RuleSet{
		values:       v,
		domainDeny:   toSet(v.Message.DomainDenylist),
		domainAllow:  toSet(v.Message.DomainAllowlist),
		trustedUsers: toSet(v.Exemptions.TrustedUsers),
		trustedRoles: toSet(v.Exemptions.TrustedRoles),
	}

	var err error
	if rs.usernamePatterns, err = compilePatterns("account suspicious_patterns", v.Account.SuspiciousPatterns); err != nil {
		return nil, err
	}
	if rs.phrasePatterns, err = compilePatterns("message spam_phrases", v.Message.SpamPhrases); err != nil {
		return nil, err
	}

	return rs, nil
}

// Values returns a copy of the raw values behind the snapshot.
func (rs *RuleSet) Values() Values { return rs.values }

// Enabled reports whether detection runs at all for this community.
func (rs *RuleSet) Enabled() bool { return rs.values.Enabled }

// Account returns the account scorer settings.
func (rs *RuleSet) Account() AccountValues { return rs.values.Account }

// Message returns the message scorer settings.
func (rs *RuleSet) Message() MessageValues { return rs.values.Message }

// Raid returns the raid detector settings.
func (rs *RuleSet) Raid() RaidValues { return rs.values.Raid }

// Escalation returns the escalation settings.
func (rs *RuleSet) Escalation() EscalationValues { return rs.values.Escalation }

// IsTrustedUser reports whether the user id is in the trusted set.
func (rs *RuleSet) IsTrustedUser(id string) bool {
	_, ok := rs.trustedUsers[id]
	return ok
}

// HasTrustedRole reports whether any of the role ids is in the trusted set.
func (rs *RuleSet) HasTrustedRole(roleIDs []string) bool {
	for _, id := range roleIDs {
		if _, ok := rs.trustedRoles[id]; ok {
			return true
		}
	}
	return false
}

// MatchesUsername reports whether the name matches a configured suspicious pattern.
func (rs *RuleSet) MatchesUsername(name string) bool {
	return matchesAny(rs.usernamePatterns, name)
}

// MatchesPhrase reports whether the text matches a configured spam phrase.
func (rs *RuleSet) MatchesPhrase(text string) bool {
	return matchesAny(rs.phrasePatterns, text)
}

// DomainSuspicious applies the configured domain policy to a link domain.
func (rs *RuleSet) DomainSuspicious(domain string) bool {
	domain = strings.ToLower(strings.TrimPrefix(domain, "www."))
	if rs.values.Message.DomainPolicy == PolicyAllowlist {
		return !inDomainSet(rs.domainAllow, domain)
	}
	return inDomainSet(rs.domainDeny, domain)
}

// MaxWindow is the largest horizon any component reads, used by the rate
// tracker to bound retained history.
func (rs *RuleSet) MaxWindow() time.Duration {
	maxSecs := rs.values.Message.WindowSeconds
	for _, s := range []int{rs.values.Raid.WindowSeconds, rs.values.Raid.LiftWindowSeconds} {
		if s > maxSecs {
			maxSecs = s
		}
	}
	return time.Duration(maxSecs) * time.Second
}

func checkWeightSum(section string, weights ...float64) error {
	var sum float64
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("%w: %s weights must be non-negative", ErrInvalidConfig, section)
		}
		sum += w
	}
	if math.Abs(sum-1) > WeightTolerance {
		return fmt.Errorf("%w: %s weights sum to %g, want 1", ErrInvalidConfig, section, sum)
	}
	return nil
}

func compilePatterns(section string, patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s pattern %q: %v", ErrInvalidConfig, section, p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = struct{}{}
	}
	return set
}

func inDomainSet(set map[string]struct{}, domain string) bool {
	if _, ok := set[domain]; ok {
		return true
	}
	// Subdomains inherit the listing of their parent.
	for {
		i := strings.IndexByte(domain, '.')
		if i < 0 {
			return false
		}
		domain = domain[i+1:]
		if _, ok := set[domain]; ok {
			return true
		}
	}
}
