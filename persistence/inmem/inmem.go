package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/persistence"
	"github.com/chatflow/chatflow/util"
)

// In memory store implementations for tests and the single binary dev mode.
// Values are copied through the JSON codec on the way in and out so callers
// can not share mutable state with the store, matching what the redis and
// sqlite stores do.

var _ persistence.FlowRunStore = new(RunStore)

type RunStore struct {
	mu             sync.RWMutex
	runs           map[string][]byte
	bySession      map[string][]string
	encoderDecoder util.EncoderDecoder[model.FlowRun]
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs:           make(map[string][]byte),
		bySession:      make(map[string][]string),
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowRun](),
	}
}

func (rs *RunStore) Save(ctx context.Context, run *model.FlowRun) error {
	data, err := rs.encoderDecoder.Encode(*run)
	if err != nil {
		return err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, exists := rs.runs[run.Id]; !exists {
		rs.bySession[run.SessionId] = append(rs.bySession[run.SessionId], run.Id)
	}
	rs.runs[run.Id] = data
	return nil
}

func (rs *RunStore) Get(ctx context.Context, id string) (*model.FlowRun, error) {
	rs.mu.RLock()
	data, ok := rs.runs[id]
	rs.mu.RUnlock()
	if !ok {
		return nil, model.ErrRunNotFound
	}
	return rs.encoderDecoder.Decode(data)
}

func (rs *RunStore) ListBySession(ctx context.Context, sessionId string) ([]*model.FlowRun, error) {
	rs.mu.RLock()
	ids := append([]string(nil), rs.bySession[sessionId]...)
	rs.mu.RUnlock()
	runs := make([]*model.FlowRun, 0, len(ids))
	for _, id := range ids {
		run, err := rs.Get(ctx, id)
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (rs *RunStore) Delete(ctx context.Context, id string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.runs, id)
	return nil
}

var _ persistence.SessionStore = new(SessionStore)

type sessionEntry struct {
	data      []byte
	expiresAt time.Time
}

type SessionStore struct {
	mu             sync.RWMutex
	sessions       map[string]sessionEntry
	ttl            time.Duration
	encoderDecoder util.EncoderDecoder[model.Session]
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions:       make(map[string]sessionEntry),
		ttl:            ttl,
		encoderDecoder: util.NewJsonEncoderDecoder[model.Session](),
	}
}

func (ss *SessionStore) Get(ctx context.Context, sessionId string) (*model.Session, error) {
	ss.mu.RLock()
	entry, ok := ss.sessions[sessionId]
	ss.mu.RUnlock()
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		ss.mu.Lock()
		delete(ss.sessions, sessionId)
		ss.mu.Unlock()
		return nil, model.ErrSessionNotFound
	}
	return ss.encoderDecoder.Decode(entry.data)
}

func (ss *SessionStore) Save(ctx context.Context, session *model.Session) error {
	data, err := ss.encoderDecoder.Encode(*session)
	if err != nil {
		return err
	}
	entry := sessionEntry{data: data}
	if ss.ttl > 0 {
		entry.expiresAt = time.Now().Add(ss.ttl)
	}
	ss.mu.Lock()
	ss.sessions[session.Id] = entry
	ss.mu.Unlock()
	return nil
}

func (ss *SessionStore) Delete(ctx context.Context, sessionId string) error {
	ss.mu.Lock()
	delete(ss.sessions, sessionId)
	ss.mu.Unlock()
	return nil
}

var _ persistence.DefinitionStore = new(DefinitionStore)

type DefinitionStore struct {
	mu             sync.RWMutex
	defs           map[string][]byte
	encoderDecoder util.EncoderDecoder[model.FlowDefinition]
}

func NewDefinitionStore() *DefinitionStore {
	return &DefinitionStore{
		defs:           make(map[string][]byte),
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowDefinition](),
	}
}

func (ds *DefinitionStore) Save(ctx context.Context, def *model.FlowDefinition) error {
	data, err := ds.encoderDecoder.Encode(*def)
	if err != nil {
		return err
	}
	ds.mu.Lock()
	ds.defs[def.Id] = data
	ds.mu.Unlock()
	return nil
}

func (ds *DefinitionStore) Get(ctx context.Context, id string) (*model.FlowDefinition, error) {
	ds.mu.RLock()
	data, ok := ds.defs[id]
	ds.mu.RUnlock()
	if !ok {
		return nil, model.ErrFlowNotFound
	}
	return ds.encoderDecoder.Decode(data)
}

func (ds *DefinitionStore) List(ctx context.Context) ([]*model.FlowDefinition, error) {
	ds.mu.RLock()
	ids := make([]string, 0, len(ds.defs))
	for id := range ds.defs {
		ids = append(ids, id)
	}
	ds.mu.RUnlock()
	sort.Strings(ids)
	defs := make([]*model.FlowDefinition, 0, len(ids))
	for _, id := range ids {
		def, err := ds.Get(ctx, id)
		if err != nil {
			continue
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (ds *DefinitionStore) Delete(ctx context.Context, id string) error {
	ds.mu.Lock()
	delete(ds.defs, id)
	ds.mu.Unlock()
	return nil
}

var _ persistence.TrainingQueue = new(TrainingQueue)

type TrainingQueue struct {
	mu      sync.Mutex
	samples [][]byte
}

func NewTrainingQueue() *TrainingQueue {
	return &TrainingQueue{}
}

func (tq *TrainingQueue) Push(ctx context.Context, sample []byte) error {
	tq.mu.Lock()
	tq.samples = append(tq.samples, sample)
	tq.mu.Unlock()
	return nil
}

func (tq *TrainingQueue) Pop(ctx context.Context, batchSize int) ([][]byte, error) {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	if batchSize > len(tq.samples) {
		batchSize = len(tq.samples)
	}
	out := tq.samples[:batchSize]
	tq.samples = tq.samples[batchSize:]
	return out, nil
}
