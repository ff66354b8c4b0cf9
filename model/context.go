package model

import "time"

// HISTORY_LIMIT caps the conversation history ring carried inside a flow
// context and a session. Oldest entries are dropped first.
const HISTORY_LIMIT = 40

// Context data keys shared between the engine, the executors and the gateway.
const CTX_KEY_HISTORY = "conversationHistory"
const CTX_KEY_MESSAGE = "userMessage"
const CTX_KEY_MESSAGE_TYPE = "userMessageType"
const CTX_KEY_PAYLOAD = "userPayload"
const CTX_KEY_LOCATION = "userLocation"
const CTX_KEY_USER_ID = "userId"
const CTX_KEY_PHONE = "phoneNumber"
const CTX_KEY_AUTH_TOKEN = "authToken"
const CTX_KEY_INTENT = "detectedIntent"
const CTX_KEY_ENTITIES = "detectedEntities"

type SystemInfo struct {
	FlowId       string `json:"flowId"`
	FlowRunId    string `json:"flowRunId"`
	CurrentState string `json:"currentState"`
}

// FlowContext is the mutable data bag threaded through a flow run. It belongs
// to exactly one run and is copied, never shared, when moved between the
// durable run record and the session snapshot.
type FlowContext struct {
	System SystemInfo     `json:"_system"`
	Data   map[string]any `json:"data"`
}

type HistoryEntry struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

const HISTORY_ROLE_USER = "user"
const HISTORY_ROLE_BOT = "bot"

// AppendHistory appends an entry to a history ring, dropping the oldest
// entries past HISTORY_LIMIT.
func AppendHistory(entries []HistoryEntry, entry HistoryEntry) []HistoryEntry {
	entries = append(entries, entry)
	if len(entries) > HISTORY_LIMIT {
		entries = entries[len(entries)-HISTORY_LIMIT:]
	}
	return entries
}

// HistoryFromValue coerces a context data value back into history entries.
// In memory the value is []HistoryEntry; after a JSON round trip through a
// store it comes back as []any of maps.
func HistoryFromValue(v any) []HistoryEntry {
	switch val := v.(type) {
	case []HistoryEntry:
		return val
	case []any:
		entries := make([]HistoryEntry, 0, len(val))
		for _, item := range val {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			entry := HistoryEntry{}
			if role, ok := m["role"].(string); ok {
				entry.Role = role
			}
			if content, ok := m["content"].(string); ok {
				entry.Content = content
			}
			if at, ok := m["at"].(string); ok {
				if parsed, err := time.Parse(time.RFC3339Nano, at); err == nil {
					entry.At = parsed
				}
			}
			entries = append(entries, entry)
		}
		return entries
	}
	return nil
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Session is the ephemeral per-conversation snapshot kept in the session
// store. It caches the active run's context for fast rehydration and carries
// identity and history across flow runs. Losing it is survivable; the durable
// run record can rebuild minimal continuity.
type Session struct {
	Id             string         `json:"id"`
	UserId         string         `json:"userId,omitempty"`
	PhoneNumber    string         `json:"phoneNumber,omitempty"`
	AuthToken      string         `json:"authToken,omitempty"`
	Location       *Location      `json:"location,omitempty"`
	History        []HistoryEntry `json:"history,omitempty"`
	ActiveRunId    string         `json:"activeRunId,omitempty"`
	SuspendedRunId string         `json:"suspendedRunId,omitempty"`
	ActiveContext  *FlowContext   `json:"activeContext,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Authenticated reports whether the session established an identity strong
// enough to run protected executors.
func (s *Session) Authenticated() bool {
	return s.AuthToken != "" && s.UserId != ""
}
