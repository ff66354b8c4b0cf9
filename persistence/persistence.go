package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/chatflow/chatflow/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

// FlowRunStore owns the durable flow run records. A run record is the source
// of truth for a conversation's progress; there are no cross-run
// transactions.
type FlowRunStore interface {
	Save(ctx context.Context, run *model.FlowRun) error
	Get(ctx context.Context, id string) (*model.FlowRun, error)
	ListBySession(ctx context.Context, sessionId string) ([]*model.FlowRun, error)
	Delete(ctx context.Context, id string) error
}

// SessionStore keeps the ephemeral per-session snapshot under a TTL. Data
// loss here only costs continuity hints; it must never be treated as the
// source of truth.
type SessionStore interface {
	Get(ctx context.Context, sessionId string) (*model.Session, error)
	Save(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, sessionId string) error
}

// DefinitionStore holds flow definitions keyed by id.
type DefinitionStore interface {
	Save(ctx context.Context, def *model.FlowDefinition) error
	Get(ctx context.Context, id string) (*model.FlowDefinition, error)
	List(ctx context.Context) ([]*model.FlowDefinition, error)
	Delete(ctx context.Context, id string) error
}

// TrainingQueue buffers classification samples destined for the offline
// training pipeline. Push must be cheap; consumers poll in batches.
type TrainingQueue interface {
	Push(ctx context.Context, sample []byte) error
	Pop(ctx context.Context, batchSize int) ([][]byte, error)
}

// TrainingSample is the record queued for the training pipeline whenever the
// generative tier produced a confident answer the faster tiers missed.
type TrainingSample struct {
	Id         string    `json:"id"`
	Text       string    `json:"text"`
	Intent     string    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Provider   string    `json:"provider"`
	At         time.Time `json:"at"`
}
