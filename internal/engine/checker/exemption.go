package checker

import (
	"errors"

	"github.com/robalyx/sentinel/internal/engine/config"
	"github.com/robalyx/sentinel/internal/engine/types"
)

// ErrCallerMisuse indicates a scorer was invoked on an exempt actor or with a
// profile missing required fields. Callers are expected to run the exemption
// filter first.
var ErrCallerMisuse = errors.New("scorer invoked incorrectly by caller")

// IsExempt reports whether the actor bypasses all detection: trusted user id,
// a trusted role, or the platform verification flag. Pure and idempotent.
func IsExempt(actorID string, profile *types.Profile, rs *config.RuleSet) bool {
	if rs.IsTrustedUser(actorID) {
		return true
	}
	if profile == nil {
		return false
	}
	if profile.Verified {
		return true
	}
	return rs.HasTrustedRole(profile.RoleIDs)
}
