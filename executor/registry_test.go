package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/chatflow/chatflow/model"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	reg := NewBuiltinRegistry()

	ex, err := reg.Get("send_message")
	require.NoError(t, err)
	require.Equal(t, "send_message", ex.Name())

	_, err = reg.Get("no_such_executor")
	require.True(t, errors.Is(err, model.ErrUnknownExecutor))
	require.False(t, reg.Has("no_such_executor"))
}

func TestSendMessage(t *testing.T) {
	ex := NewSendMessageExecutor()
	out, err := ex.Execute(context.Background(), Input{
		Config: map[string]any{
			"text": "pick one",
			"buttons": []any{
				map[string]any{"id": "yes", "title": "Yes"},
				map[string]any{"id": "no", "title": "No"},
			},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Reply)
	require.Equal(t, "pick one", out.Reply.Content)
	require.Len(t, out.Reply.Buttons, 2)
	require.Equal(t, "yes", out.Reply.Buttons[0].Id)

	_, err = ex.Execute(context.Background(), Input{Config: map[string]any{}})
	require.Error(t, err)
}

func TestCollectInput(t *testing.T) {
	ex := NewCollectInputExecutor()
	out, err := ex.Execute(context.Background(), Input{
		Config:  map[string]any{"key": "deliveryAddress"},
		Message: &model.Message{Type: model.MESSAGE_TYPE_TEXT, Text: "12 Main St"},
	})
	require.NoError(t, err)
	require.Equal(t, "12 Main St", out.Data["deliveryAddress"])

	out, err = ex.Execute(context.Background(), Input{
		Config: map[string]any{"key": "pickup"},
		Message: &model.Message{
			Type:     model.MESSAGE_TYPE_LOCATION,
			Location: &model.Location{Latitude: 6.45, Longitude: 3.39},
		},
	})
	require.NoError(t, err)
	loc, ok := out.Data["pickup"].(*model.Location)
	require.True(t, ok)
	require.Equal(t, 6.45, loc.Latitude)
}

func TestScriptExecutor(t *testing.T) {
	ex := NewScriptExecutor()
	fctx := &model.FlowContext{Data: map[string]any{"total": float64(3)}}
	out, err := ex.Execute(context.Background(), Input{
		Config:      map[string]any{"expression": "$.event = $.total > 2 ? 'large' : 'small';"},
		FlowContext: fctx,
	})
	require.NoError(t, err)
	require.Equal(t, "large", out.Event)
}

func TestRecordHistory(t *testing.T) {
	ex := NewRecordHistoryExecutor()
	fctx := &model.FlowContext{Data: map[string]any{}}
	out, err := ex.Execute(context.Background(), Input{
		Config:      map[string]any{"role": model.HISTORY_ROLE_USER},
		FlowContext: fctx,
		Message:     &model.Message{Type: model.MESSAGE_TYPE_TEXT, Text: "hello"},
	})
	require.NoError(t, err)
	history := model.HistoryFromValue(out.Data[model.CTX_KEY_HISTORY])
	require.Len(t, history, 1)
	require.Equal(t, "hello", history[0].Content)
}
