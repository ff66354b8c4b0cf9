package model

type Provider string

const PROVIDER_PATTERN Provider = "pattern"
const PROVIDER_MODEL_PRIMARY Provider = "model-primary"
const PROVIDER_MODEL_SECONDARY Provider = "model-secondary"
const PROVIDER_GENERATIVE Provider = "generative"
const PROVIDER_HEURISTIC Provider = "heuristic"

// Canonical intent vocabulary produced by classification and consumed by
// flow selection. Raw model intents are normalized into these; unmapped ones
// pass through unchanged.
const INTENT_UNKNOWN = "unknown"
const INTENT_GREETING = "greeting"
const INTENT_HELP = "help"
const INTENT_RESET = "system.reset"
const INTENT_CANCEL = "system.cancel"
const INTENT_HANDOFF = "system.handoff"
const INTENT_LOGIN = "auth.login"
const INTENT_ORDER_FOOD = "order.food"
const INTENT_TRACK_ORDER = "order.track"
const INTENT_SEND_PARCEL = "parcel.send"
const INTENT_TRACK_PARCEL = "parcel.track"
const INTENT_SHOP = "ecommerce.browse"
const INTENT_WALLET = "wallet.balance"
const INTENT_GAME = "game.play"

type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ClassificationResult is ephemeral: nothing persists it beyond what an
// executor chooses to copy into context data.
type ClassificationResult struct {
	Intent             string   `json:"intent"`
	Confidence         float64  `json:"confidence"`
	Entities           []Entity `json:"entities,omitempty"`
	Provider           Provider `json:"provider"`
	Overridden         bool     `json:"overridden,omitempty"`
	NeedsClarification bool     `json:"needsClarification,omitempty"`
}

// Unknown reports whether the intent is the sentinel value that makes flow
// selection skip its exact and prefix matching tiers.
func (c *ClassificationResult) Unknown() bool {
	return c.Intent == "" || c.Intent == INTENT_UNKNOWN || c.Intent == DEFAULT_EVENT
}
