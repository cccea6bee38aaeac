package config

// Values is the raw, unvalidated detection configuration for one community as
// the host hands it over. It is compiled into an immutable RuleSet before the
// engine will act on it.
type Values struct {
	Enabled    bool             `koanf:"enabled"`    // Master toggle for all detection
	Account    AccountValues    `koanf:"account"`    // Account heuristic scorer settings
	Message    MessageValues    `koanf:"message"`    // Message pattern scorer settings
	Raid       RaidValues       `koanf:"raid"`       // Raid detector settings
	Escalation EscalationValues `koanf:"escalation"` // Escalation state machine settings
	Exemptions ExemptionValues  `koanf:"exemptions"` // Trusted users and roles
}

// AccountValues configures the account heuristic scorer.
type AccountValues struct {
	Enabled            bool           `koanf:"enabled"`
	MinSafeAgeDays     float64        `koanf:"min_safe_age_days"`    // Accounts younger than this score toward 1
	JoinProximityMins  float64        `koanf:"join_proximity_mins"`  // Join within this of creation is suspicious
	SuspiciousPatterns []string       `koanf:"suspicious_patterns"`  // Regex patterns for bot-like names
	Weights            AccountWeights `koanf:"weights"`
}

// AccountWeights are the sub-signal weights for account scoring.
// They must sum to 1 within tolerance.
type AccountWeights struct {
	Age           float64 `koanf:"age"`
	Username      float64 `koanf:"username"`
	Avatar        float64 `koanf:"avatar"`
	JoinProximity float64 `koanf:"join_proximity"`
}

// MessageValues configures the message pattern scorer.
type MessageValues struct {
	Enabled         bool           `koanf:"enabled"`
	MaxPerWindow    int            `koanf:"max_per_window"`   // Messages per window before rate signal saturates
	WindowSeconds   int            `koanf:"window_seconds"`   // Message rate window size
	MaxMentions     int            `koanf:"max_mentions"`     // Mentions per message before mention signal saturates
	DomainPolicy    string         `koanf:"domain_policy"`    // "denylist" or "allowlist"
	DomainDenylist  []string       `koanf:"domain_denylist"`  // Domains that trip the link signal
	DomainAllowlist []string       `koanf:"domain_allowlist"` // Domains permitted under allowlist policy
	SpamPhrases     []string       `koanf:"spam_phrases"`     // Regex patterns for spam phrasing
	CapsRatio       float64        `koanf:"caps_ratio"`       // Uppercase ratio treated as shouting, 0 disables
	Weights         MessageWeights `koanf:"weights"`
}

// MessageWeights are the sub-signal weights for message scoring.
// They must sum to 1 within tolerance.
type MessageWeights struct {
	Rate      float64 `koanf:"rate"`
	Duplicate float64 `koanf:"duplicate"`
	Mention   float64 `koanf:"mention"`
	Link      float64 `koanf:"link"`
	Phrase    float64 `koanf:"phrase"`
}

// RaidValues configures the community-wide raid detector.
type RaidValues struct {
	Enabled            bool    `koanf:"enabled"`
	JoinThreshold      int     `koanf:"join_threshold"`       // Joins in the window that trigger lockdown
	WindowSeconds      int     `koanf:"window_seconds"`       // Join surge window size
	LiftWindowSeconds  int     `koanf:"lift_window_seconds"`  // Window inspected for the automatic lift
	LiftThreshold      int     `koanf:"lift_threshold"`       // Joins must stay strictly below this to lift
	LiftSustainSeconds int     `koanf:"lift_sustain_seconds"` // How long the calm must hold before lifting
	LockdownBias       float64 `koanf:"lockdown_bias"`        // Added to signals of actors joining while locked
}

// EscalationValues configures the per-actor escalation state machine.
type EscalationValues struct {
	DecayFactor         float64 `koanf:"decay_factor"`         // Multiplied into the score before each new signal
	FlagThreshold       float64 `koanf:"flag_threshold"`       // Score at which an actor becomes Flagged
	QuarantineThreshold float64 `koanf:"quarantine_threshold"` // Score at which an actor becomes Quarantined
	BanThreshold        float64 `koanf:"ban_threshold"`        // Score at which an actor becomes Banned
	RejoinGraceSeconds  int     `koanf:"rejoin_grace_seconds"` // How long suspicion outlives a leave
}

// ExemptionValues lists actors that bypass all detection.
type ExemptionValues struct {
	TrustedUsers []string `koanf:"trusted_users"`
	TrustedRoles []string `koanf:"trusted_roles"`
}

// DefaultValues returns the stock detection configuration applied to
// communities without explicit overrides.
func DefaultValues() Values {
	return Values{
		Enabled: true,
		Account: AccountValues{
			Enabled:           true,
			MinSafeAgeDays:    7,
			JoinProximityMins: 60,
			SuspiciousPatterns: []string{
				`^[a-z]+\d{4,}$`,
				`^user\d+$`,
			},
			Weights: AccountWeights{
				Age:           0.4,
				Username:      0.25,
				Avatar:        0.15,
				JoinProximity: 0.2,
			},
		},
		Message: MessageValues{
			Enabled:       true,
			MaxPerWindow:  10,
			WindowSeconds: 60,
			MaxMentions:   5,
			DomainPolicy:  PolicyDenylist,
			DomainDenylist: []string{
				"bit.ly",
				"tinyurl.com",
				"ow.ly",
			},
			SpamPhrases: []string{
				`free\s+nitro`,
				`click\s+here`,
				`limited\s+time`,
				`you\s+have\s+won`,
				`claim\s+now`,
			},
			CapsRatio: 0.7,
			Weights: MessageWeights{
				Rate:      0.3,
				Duplicate: 0.25,
				Mention:   0.15,
				Link:      0.15,
				Phrase:    0.15,
			},
		},
		Raid: RaidValues{
			Enabled:            true,
			JoinThreshold:      5,
			WindowSeconds:      60,
			LiftWindowSeconds:  60,
			LiftThreshold:      3,
			LiftSustainSeconds: 120,
			LockdownBias:       0.3,
		},
		Escalation: EscalationValues{
			DecayFactor:         0.8,
			FlagThreshold:       0.6,
			QuarantineThreshold: 1.2,
			BanThreshold:        2.0,
			RejoinGraceSeconds:  600,
		},
	}
}
