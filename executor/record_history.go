package executor

import (
	"context"
	"time"

	"github.com/chatflow/chatflow/model"
)

var _ Executor = new(recordHistoryExecutor)

// recordHistoryExecutor appends an entry to the conversation history ring in
// context data. Config keys: role (defaults to bot), content (template
// resolved; defaults to the inbound message text when empty and role is
// user).
type recordHistoryExecutor struct{}

func NewRecordHistoryExecutor() *recordHistoryExecutor {
	return &recordHistoryExecutor{}
}

func (e *recordHistoryExecutor) Name() string {
	return "record_history"
}

func (e *recordHistoryExecutor) Execute(ctx context.Context, in Input) (Output, error) {
	role, _ := in.Config["role"].(string)
	if role == "" {
		role = model.HISTORY_ROLE_BOT
	}
	content, _ := in.Config["content"].(string)
	if content == "" && role == model.HISTORY_ROLE_USER && in.Message != nil {
		content = in.Message.Content()
	}
	if content == "" {
		return Output{}, nil
	}
	history := model.HistoryFromValue(in.FlowContext.Data[model.CTX_KEY_HISTORY])
	history = model.AppendHistory(history, model.HistoryEntry{
		Role:    role,
		Content: content,
		At:      time.Now(),
	})
	return Output{Data: map[string]any{model.CTX_KEY_HISTORY: history}}, nil
}
