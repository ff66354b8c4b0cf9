package model

type MessageType string

const MESSAGE_TYPE_TEXT MessageType = "text"
const MESSAGE_TYPE_BUTTON MessageType = "button"
const MESSAGE_TYPE_LOCATION MessageType = "location"

// Message is one inbound event delivered by the transport collaborator. The
// transport owns connection lifecycle and per-connection ordering; this is
// the shape it hands over.
type Message struct {
	SessionId   string         `json:"sessionId"`
	Type        MessageType    `json:"type"`
	Text        string         `json:"text,omitempty"`
	Payload     string         `json:"payload,omitempty"`
	Location    *Location      `json:"location,omitempty"`
	UserId      string         `json:"userId,omitempty"`
	PhoneNumber string         `json:"phoneNumber,omitempty"`
	AuthToken   string         `json:"authToken,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Content returns the matchable text of the message: button payloads count as
// text for classification and deduplication.
func (m *Message) Content() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Payload
}

type Button struct {
	Id    string `json:"id"`
	Title string `json:"title"`
}

type Card struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	ImageUrl string `json:"imageUrl,omitempty"`
	Buttons  []Button `json:"buttons,omitempty"`
}

// Reply is one outbound message shaped for the transport collaborator to
// render.
type Reply struct {
	Content  string         `json:"content"`
	Buttons  []Button       `json:"buttons,omitempty"`
	Cards    []Card         `json:"cards,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ResumeOffer invites the user back into a flow that was suspended by an
// interrupting intent.
type ResumeOffer struct {
	RunId    string `json:"runId"`
	FlowId   string `json:"flowId"`
	FlowName string `json:"flowName"`
}

// EngineResult is what one handled message produced: where the run stopped,
// whether it finished, and the replies to deliver.
type EngineResult struct {
	RunId       string       `json:"runId,omitempty"`
	FlowId      string       `json:"flowId,omitempty"`
	NextState   string       `json:"nextState,omitempty"`
	Completed   bool         `json:"completed"`
	Deduped     bool         `json:"deduped,omitempty"`
	Replies     []Reply      `json:"replies,omitempty"`
	ResumeOffer *ResumeOffer `json:"resumeOffer,omitempty"`
}
