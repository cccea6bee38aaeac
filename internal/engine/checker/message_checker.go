package checker

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/robalyx/sentinel/internal/engine/config"
	"github.com/robalyx/sentinel/internal/engine/types"
	"github.com/robalyx/sentinel/pkg/utils"
	"go.uber.org/zap"
)

// mentionEveryoneWeight is how many mentions a community-wide mention counts
// as before normalization, matching the original detector's penalty.
const mentionEveryoneWeight = 10

// MessageChecker scores an individual message for spam traits. The rate
// signal is computed from the window count handed in by the rate tracker so
// there is a single source of truth for rate state.
type MessageChecker struct {
	logger *zap.Logger

	mu         sync.Mutex
	normalizer *utils.TextNormalizer
}

// NewMessageChecker creates a MessageChecker.
func NewMessageChecker(logger *zap.Logger) *MessageChecker {
	return &MessageChecker{
		logger:     logger.Named("message_checker"),
		normalizer: utils.NewTextNormalizer(),
	}
}

// Score returns the message's spam score in [0,1] together with the
// normalized text the caller should remember as the actor's previous message.
// prevNormalized is the normalized text of the actor's immediately preceding
// message within the window, or empty. windowCount is the actor's message
// count in the configured window, including this message. Returns
// ErrCallerMisuse when invoked on an exempt actor.
func (c *MessageChecker) Score(
	actorID string,
	profile *types.Profile,
	msg *types.Message,
	prevNormalized string,
	windowCount int,
	rs *config.RuleSet,
	now time.Time,
) (float64, string, error) {
	if msg == nil {
		return 0, "", fmt.Errorf("%w: message scoring requires a message payload", ErrCallerMisuse)
	}
	if IsExempt(actorID, profile, rs) {
		return 0, "", fmt.Errorf("%w: message scoring invoked on exempt actor %s", ErrCallerMisuse, actorID)
	}

	normalized := c.normalize(msg.Text)

	cfg := rs.Message()
	if !cfg.Enabled {
		return 0, normalized, nil
	}

	w := cfg.Weights
	score := w.Rate*rateSignal(windowCount, cfg) +
		w.Duplicate*duplicateSignal(normalized, prevNormalized) +
		w.Mention*mentionSignal(msg, cfg) +
		w.Link*linkSignal(msg.Links, rs) +
		w.Phrase*phraseSignal(msg.Text, normalized, cfg, rs)

	return clamp01(score), normalized, nil
}

func (c *MessageChecker) normalize(text string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.normalizer.Normalize(text)
}

// rateSignal is messages-in-window over the configured maximum, capped at 1.
func rateSignal(windowCount int, cfg config.MessageValues) float64 {
	return clamp01(float64(windowCount) / float64(cfg.MaxPerWindow))
}

// duplicateSignal is 1 when the normalized text repeats the actor's previous
// message. Empty messages never count as duplicates.
func duplicateSignal(normalized, prevNormalized string) float64 {
	if normalized == "" || prevNormalized == "" {
		return 0
	}
	if normalized == prevNormalized {
		return 1
	}
	return 0
}

func mentionSignal(msg *types.Message, cfg config.MessageValues) float64 {
	mentions := msg.MentionCount
	if msg.MentionsEveryone {
		mentions += mentionEveryoneWeight
	}
	return clamp01(float64(mentions) / float64(cfg.MaxMentions))
}

// linkSignal is 1 when any embedded URL's domain falls foul of the configured
// domain policy. Unparseable URLs are treated as suspicious.
func linkSignal(links []string, rs *config.RuleSet) float64 {
	for _, link := range links {
		domain, ok := linkDomain(link)
		if !ok || rs.DomainSuspicious(domain) {
			return 1
		}
	}
	return 0
}

// phraseSignal is 1 when the text matches a configured spam phrase or is
// mostly shouted uppercase.
func phraseSignal(raw, normalized string, cfg config.MessageValues, rs *config.RuleSet) float64 {
	if rs.MatchesPhrase(normalized) {
		return 1
	}
	if cfg.CapsRatio > 0 && len(raw) > 10 && utils.CapsRatio(raw) > cfg.CapsRatio {
		return 1
	}
	return 0
}

func linkDomain(link string) (string, bool) {
	if !strings.Contains(link, "://") {
		link = "https://" + link
	}
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	return strings.ToLower(u.Hostname()), true
}
