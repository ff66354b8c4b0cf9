package classify

import (
	"regexp"
	"strings"

	"github.com/chatflow/chatflow/model"
)

// patternRule is the fast path for very high value, unambiguous intents.
// These are operational commands the bot must obey instantly; a match
// bypasses every network tier.
type patternRule struct {
	re         *regexp.Regexp
	intent     string
	confidence float64
}

var fastPathRules = []patternRule{
	{regexp.MustCompile(`^(reset|restart|start over)\b`), model.INTENT_RESET, 0.99},
	{regexp.MustCompile(`^(cancel|stop|quit|exit)\b`), model.INTENT_CANCEL, 0.99},
	{regexp.MustCompile(`\b(agent|human|customer care|support person)\b`), model.INTENT_HANDOFF, 0.95},
	{regexp.MustCompile(`^(hi|hey|hello|good morning|good afternoon|good evening|howdy)[.!\s]*$`), model.INTENT_GREETING, 0.95},
	{regexp.MustCompile(`^(help|menu|what can you do)[?.!\s]*$`), model.INTENT_HELP, 0.95},
}

// matchFastPath checks the lowered text against the fast path rules and
// returns a fixed high confidence result on a hit.
func matchFastPath(text string) *model.ClassificationResult {
	lowered := strings.ToLower(strings.TrimSpace(text))
	for _, rule := range fastPathRules {
		if rule.re.MatchString(lowered) {
			return &model.ClassificationResult{
				Intent:     rule.intent,
				Confidence: rule.confidence,
				Provider:   model.PROVIDER_PATTERN,
			}
		}
	}
	return nil
}
