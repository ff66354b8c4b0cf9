package classify

import "github.com/chatflow/chatflow/model"

// intentAliases translates the model service's raw intent vocabulary into
// the vocabulary flow selection expects. Raw intents without a mapping pass
// through unchanged.
var intentAliases = map[string]string{
	"food_order":     model.INTENT_ORDER_FOOD,
	"order_food":     model.INTENT_ORDER_FOOD,
	"food":           model.INTENT_ORDER_FOOD,
	"track_order":    model.INTENT_TRACK_ORDER,
	"order_status":   model.INTENT_TRACK_ORDER,
	"send_package":   model.INTENT_SEND_PARCEL,
	"parcel_send":    model.INTENT_SEND_PARCEL,
	"logistics":      model.INTENT_SEND_PARCEL,
	"track_package":  model.INTENT_TRACK_PARCEL,
	"shopping":       model.INTENT_SHOP,
	"browse":         model.INTENT_SHOP,
	"buy_product":    model.INTENT_SHOP,
	"wallet":         model.INTENT_WALLET,
	"check_balance":  model.INTENT_WALLET,
	"login":          model.INTENT_LOGIN,
	"signin":         model.INTENT_LOGIN,
	"authenticate":   model.INTENT_LOGIN,
	"greet":          model.INTENT_GREETING,
	"hello":          model.INTENT_GREETING,
	"salutation":     model.INTENT_GREETING,
	"ask_help":       model.INTENT_HELP,
	"faq":            model.INTENT_HELP,
	"play_game":      model.INTENT_GAME,
	"out_of_scope":   model.INTENT_UNKNOWN,
	"fallback":       model.INTENT_UNKNOWN,
	"none":           model.INTENT_UNKNOWN,
}

func normalizeIntent(raw string) string {
	if canonical, ok := intentAliases[raw]; ok {
		return canonical
	}
	return raw
}

// allowedIntents is the closed vocabulary handed to the generative tier.
var allowedIntents = []string{
	model.INTENT_GREETING,
	model.INTENT_HELP,
	model.INTENT_RESET,
	model.INTENT_CANCEL,
	model.INTENT_HANDOFF,
	model.INTENT_LOGIN,
	model.INTENT_ORDER_FOOD,
	model.INTENT_TRACK_ORDER,
	model.INTENT_SEND_PARCEL,
	model.INTENT_TRACK_PARCEL,
	model.INTENT_SHOP,
	model.INTENT_WALLET,
	model.INTENT_GAME,
	model.INTENT_UNKNOWN,
}
