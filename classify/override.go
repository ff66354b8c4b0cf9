package classify

import (
	"strings"

	"github.com/chatflow/chatflow/logger"
	"github.com/chatflow/chatflow/model"
	"go.uber.org/zap"
)

var greetingPhrases = []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening", "how are you"}

var foodKeywords = []string{"pizza", "burger", "rice", "jollof", "shawarma", "suya", "restaurant", "hungry", "food", "meal"}

// multiPartyKeywords is explicit multi party delivery language: strong food
// words plus these still mean a parcel job (someone sending food to someone
// else through a courier), so the food override stands down.
var multiPartyKeywords = []string{"pick up from", "deliver to my friend", "send to", "dispatch rider", "courier"}

// applyOverrides corrects known systematic misclassifications after any
// tier. Overrides never lower confidence and always mark the result as
// overridden.
func applyOverrides(text string, result *model.ClassificationResult) *model.ClassificationResult {
	lowered := strings.ToLower(strings.TrimSpace(text))

	// an obvious greeting misrouted to a transactional intent
	if isBareGreeting(lowered) && result.Intent != model.INTENT_GREETING {
		return override(result, model.INTENT_GREETING, 0.9, text)
	}

	// strong food vocabulary misrouted to logistics, unless the message also
	// carries multi party delivery language
	if result.Intent == model.INTENT_SEND_PARCEL || result.Intent == model.INTENT_TRACK_PARCEL {
		if containsAnyKeyword(lowered, foodKeywords) && !containsAnyKeyword(lowered, multiPartyKeywords) {
			return override(result, model.INTENT_ORDER_FOOD, 0.85, text)
		}
	}
	return result
}

func override(result *model.ClassificationResult, intent string, floor float64, text string) *model.ClassificationResult {
	confidence := result.Confidence
	if floor > confidence {
		confidence = floor
	}
	logger.Info("classification override applied",
		zap.String("from", result.Intent), zap.String("to", intent), zap.String("text", text))
	return &model.ClassificationResult{
		Intent:             intent,
		Confidence:         confidence,
		Entities:           result.Entities,
		Provider:           result.Provider,
		Overridden:         true,
		NeedsClarification: false,
	}
}

func isBareGreeting(lowered string) bool {
	trimmed := strings.TrimRight(lowered, " .!?")
	for _, phrase := range greetingPhrases {
		if trimmed == phrase {
			return true
		}
	}
	return false
}

func containsAnyKeyword(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
