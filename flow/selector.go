package flow

import (
	"sort"
	"strings"

	"github.com/chatflow/chatflow/model"
)

// TRIGGER_PREFIX namespaces triggers registered by the authoring surface;
// a classified intent "order.food" also matches a trigger "flow.order.food".
const TRIGGER_PREFIX = "flow."

// MODULE_FALLBACK is the module tried after the requested one when nothing
// else matched.
const MODULE_FALLBACK = model.MODULE_GENERAL

var intentKeywordBuckets = []struct {
	trigger  string
	keywords []string
}{
	// auth keywords take precedence over everything else in the intent
	{"login", []string{"login", "signin", "auth", "register", "signup", "otp"}},
	{"greeting", []string{"greeting", "hello", "welcome"}},
	{"game", []string{"game", "play", "spin", "reward"}},
	{"help", []string{"help", "support", "faq"}},
}

var messageKeywordBuckets = []struct {
	module   model.ModuleName
	keywords []string
}{
	{model.MODULE_FOOD, []string{"food", "eat", "hungry", "restaurant", "pizza", "burger", "rice", "meal", "menu", "jollof", "shawarma"}},
	{model.MODULE_PARCEL, []string{"parcel", "package", "deliver", "dispatch", "courier", "pickup", "send item"}},
	{model.MODULE_ECOMMERCE, []string{"buy", "shop", "store", "product", "cart", "checkout"}},
}

// FindFlowByIntent deterministically picks one enabled flow definition for a
// classified intent. Seven ordered tiers, first match wins; exact and prefix
// tiers are skipped entirely for the sentinel unknown intent. Candidates are
// walked in id order so identical inputs against an identical definition set
// always return the same flow.
func FindFlowByIntent(defs []*model.FlowDefinition, intent string, module model.ModuleName, rawMessage string) *model.FlowDefinition {
	candidates := enabledSorted(defs)
	if len(candidates) == 0 {
		return nil
	}
	intent = strings.ToLower(strings.TrimSpace(intent))
	unknown := intent == "" || intent == model.INTENT_UNKNOWN || intent == model.DEFAULT_EVENT

	if !unknown {
		// 1. exact trigger equality
		for _, def := range candidates {
			if anyTrigger(def, func(t string) bool { return t == intent }) {
				return def
			}
		}
		// 2. namespaced trigger
		for _, def := range candidates {
			if anyTrigger(def, func(t string) bool { return t == TRIGGER_PREFIX+intent }) {
				return def
			}
		}
		// 3. dotted suffix match either direction
		for _, def := range candidates {
			if anyTrigger(def, func(t string) bool {
				return strings.HasSuffix(intent, "."+t) || strings.HasSuffix(t, "."+intent)
			}) {
				return def
			}
		}
		// 4. substring match either direction against trigger alternatives
		for _, def := range candidates {
			if anyTrigger(def, func(t string) bool {
				return strings.Contains(intent, t) || strings.Contains(t, intent)
			}) {
				return def
			}
		}
		// 5. keyword buckets against the intent string
		for _, bucket := range intentKeywordBuckets {
			if !containsAny(intent, bucket.keywords) {
				continue
			}
			token := bucket.trigger
			for _, def := range candidates {
				if anyTrigger(def, func(t string) bool { return strings.Contains(t, token) }) {
					return def
				}
			}
		}
	}
	// 6. keyword buckets against the raw message: classification confidence
	// may be too low to trust but the literal words are still informative
	if rawMessage != "" {
		lowered := strings.ToLower(rawMessage)
		for _, bucket := range messageKeywordBuckets {
			if containsAny(lowered, bucket.keywords) {
				if def := firstByModule(candidates, bucket.module); def != nil {
					return def
				}
			}
		}
	}
	// 7. module fallback: the requested module first, then the generic one
	if module != "" {
		if def := firstByModule(candidates, module); def != nil {
			return def
		}
	}
	if module != MODULE_FALLBACK {
		if def := firstByModule(candidates, MODULE_FALLBACK); def != nil {
			return def
		}
	}
	return nil
}

func enabledSorted(defs []*model.FlowDefinition) []*model.FlowDefinition {
	candidates := make([]*model.FlowDefinition, 0, len(defs))
	for _, def := range defs {
		if def.IsEnabled() {
			candidates = append(candidates, def)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Id < candidates[j].Id
	})
	return candidates
}

// anyTrigger tests the predicate against each |-delimited trigger
// alternative.
func anyTrigger(def *model.FlowDefinition, match func(string) bool) bool {
	for _, alt := range strings.Split(def.Trigger, "|") {
		alt = strings.ToLower(strings.TrimSpace(alt))
		if alt == "" {
			continue
		}
		if match(alt) {
			return true
		}
	}
	return false
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func firstByModule(candidates []*model.FlowDefinition, module model.ModuleName) *model.FlowDefinition {
	for _, def := range candidates {
		if def.Module == module {
			return def
		}
	}
	return nil
}
