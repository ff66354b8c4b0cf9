package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chatflow/chatflow/config"
	"github.com/chatflow/chatflow/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DEFAULT_GENERATIVE_TIMEOUT = 8 * time.Second

const generativeSystemPrompt = `You classify a user message from a commerce chat bot into exactly one intent.
Permitted intents: %s.
Reply with a single JSON object, nothing else:
{"intent": "<one permitted intent>", "confidence": <0..1>, "entities": [{"type": "...", "value": "..."}], "reasoning": "<short>", "needsClarification": <true|false>}
Use "unknown" with needsClarification true when you are not sure.`

type generativeResponse struct {
	Intent             string         `json:"intent"`
	Confidence         float64        `json:"confidence"`
	Entities           []model.Entity `json:"entities"`
	Reasoning          string         `json:"reasoning"`
	NeedsClarification bool           `json:"needsClarification"`
}

// GenerativeClassifier is the slow fallback tier: a prompt based extractor
// constrained to the permitted intent list. It only runs when the model
// tiers were unsure or unavailable.
type GenerativeClassifier struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func NewGenerativeClassifier(conf config.GenerativeConfig) *GenerativeClassifier {
	opts := []option.RequestOption{option.WithAPIKey(conf.APIKey)}
	if conf.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(conf.BaseURL))
	}
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = DEFAULT_GENERATIVE_TIMEOUT
	}
	return &GenerativeClassifier{
		client:  openai.NewClient(opts...),
		model:   conf.Model,
		timeout: timeout,
	}
}

func (g *GenerativeClassifier) Classify(ctx context.Context, text string, history []model.HistoryEntry) (*model.ClassificationResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(fmt.Sprintf(generativeSystemPrompt, strings.Join(allowedIntents, ", "))),
	}
	// a short tail of the conversation helps disambiguate one word answers
	for _, entry := range tail(history, 6) {
		if entry.Role == model.HISTORY_ROLE_BOT {
			messages = append(messages, openai.AssistantMessage(entry.Content))
		} else {
			messages = append(messages, openai.UserMessage(entry.Content))
		}
	}
	messages = append(messages, openai.UserMessage(text))
	resp, err := g.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(g.model),
		Messages:    messages,
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("generative classifier returned no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	var decoded generativeResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &decoded); err != nil {
		return nil, fmt.Errorf("generative classifier returned unparseable content: %w", err)
	}
	if !permitted(decoded.Intent) {
		decoded.Intent = model.INTENT_UNKNOWN
		decoded.NeedsClarification = true
	}
	return &model.ClassificationResult{
		Intent:             decoded.Intent,
		Confidence:         decoded.Confidence,
		Entities:           decoded.Entities,
		Provider:           model.PROVIDER_GENERATIVE,
		NeedsClarification: decoded.NeedsClarification,
	}, nil
}

func permitted(intent string) bool {
	for _, allowed := range allowedIntents {
		if intent == allowed {
			return true
		}
	}
	return false
}

func tail(history []model.HistoryEntry, n int) []model.HistoryEntry {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
