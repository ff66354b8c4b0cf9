package classify

import (
	"strings"

	"github.com/chatflow/chatflow/model"
)

// heuristicRule pairs an intent with the keywords that imply it. Rules are
// checked in order: domain specific business vocabulary first, generic small
// talk last, earlier rules win.
type heuristicRule struct {
	intent     string
	confidence float64
	keywords   []string
}

var heuristicRules = []heuristicRule{
	{model.INTENT_TRACK_ORDER, 0.6, []string{"track my order", "where is my order", "order status", "track order"}},
	{model.INTENT_TRACK_PARCEL, 0.6, []string{"track my parcel", "track package", "where is my package", "parcel status"}},
	{model.INTENT_ORDER_FOOD, 0.6, []string{"order food", "hungry", "pizza", "burger", "restaurant", "rice", "jollof", "shawarma", "menu", "eat"}},
	{model.INTENT_SEND_PARCEL, 0.6, []string{"send a parcel", "send parcel", "send package", "deliver", "dispatch", "courier", "pickup"}},
	{model.INTENT_SHOP, 0.55, []string{"buy", "shop", "store", "product", "cart", "checkout"}},
	{model.INTENT_WALLET, 0.55, []string{"wallet", "balance", "top up", "fund"}},
	{model.INTENT_LOGIN, 0.55, []string{"login", "log in", "sign in", "register", "sign up", "otp"}},
	{model.INTENT_GAME, 0.5, []string{"game", "play", "spin", "reward"}},
	{model.INTENT_HELP, 0.45, []string{"help", "support", "how do i", "what can you"}},
	{model.INTENT_GREETING, 0.4, []string{"hello", "hi ", "hey", "good morning", "good afternoon", "good evening"}},
}

// classifyHeuristic is the unconditional last tier: it always returns a
// result, even with every network dependency down.
func classifyHeuristic(text string) *model.ClassificationResult {
	lowered := strings.ToLower(text)
	for _, rule := range heuristicRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return &model.ClassificationResult{
					Intent:     rule.intent,
					Confidence: rule.confidence,
					Provider:   model.PROVIDER_HEURISTIC,
				}
			}
		}
	}
	return &model.ClassificationResult{
		Intent:     model.INTENT_UNKNOWN,
		Confidence: 0.2,
		Provider:   model.PROVIDER_HEURISTIC,
	}
}
