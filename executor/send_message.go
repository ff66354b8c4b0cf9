package executor

import (
	"context"
	"fmt"

	"github.com/chatflow/chatflow/model"
)

var _ Executor = new(sendMessageExecutor)

// sendMessageExecutor renders config into an outbound reply. Config keys:
// text (already template resolved), buttons (list of {id,title}), cards
// (list of {title,subtitle,imageUrl}).
type sendMessageExecutor struct{}

func NewSendMessageExecutor() *sendMessageExecutor {
	return &sendMessageExecutor{}
}

func (e *sendMessageExecutor) Name() string {
	return "send_message"
}

func (e *sendMessageExecutor) Execute(ctx context.Context, in Input) (Output, error) {
	text, _ := in.Config["text"].(string)
	if text == "" {
		return Output{}, fmt.Errorf("send_message requires a text config value")
	}
	reply := &model.Reply{Content: text}
	if buttons, ok := in.Config["buttons"].([]any); ok {
		for _, b := range buttons {
			bm, ok := b.(map[string]any)
			if !ok {
				continue
			}
			reply.Buttons = append(reply.Buttons, model.Button{
				Id:    stringValue(bm["id"]),
				Title: stringValue(bm["title"]),
			})
		}
	}
	if cards, ok := in.Config["cards"].([]any); ok {
		for _, c := range cards {
			cm, ok := c.(map[string]any)
			if !ok {
				continue
			}
			reply.Cards = append(reply.Cards, model.Card{
				Title:    stringValue(cm["title"]),
				Subtitle: stringValue(cm["subtitle"]),
				ImageUrl: stringValue(cm["imageUrl"]),
			})
		}
	}
	return Output{Reply: reply}, nil
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
