package gateway

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	c "github.com/patrickmn/go-cache"

	"github.com/chatflow/chatflow/classify"
	"github.com/chatflow/chatflow/flow"
	"github.com/chatflow/chatflow/logger"
	"github.com/chatflow/chatflow/metadata"
	"github.com/chatflow/chatflow/metrics"
	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/persistence"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DEFAULT_DEDUP_WINDOW = 1500 * time.Millisecond
const DEFAULT_INTERRUPT_THRESHOLD = 0.75

const RESUME_PAYLOAD = "resume_suspended"

const unknownReply = "Sorry, I didn't quite get that. You can order food, send a parcel or shop. What would you like to do?"
const resetReply = "Okay, we're starting over. What would you like to do?"
const cancelReply = "Alright, I've cancelled that. Anything else?"

// Gateway is the per session entry point. It deduplicates inbound messages,
// keeps the session snapshot fresh, decides between starting, resuming,
// interrupting and cancelling flows, and drives the engine. The transport
// collaborator serializes delivery per session; the gateway itself holds no
// per session locks.
type Gateway struct {
	runs               persistence.FlowRunStore
	sessions           persistence.SessionStore
	definitions        *metadata.Service
	classifier         *classify.Classifier
	engine             *flow.Engine
	dedup              *c.Cache
	dedupWindow        time.Duration
	interruptThreshold float64
}

func New(runs persistence.FlowRunStore, sessions persistence.SessionStore, definitions *metadata.Service,
	classifier *classify.Classifier, engine *flow.Engine, dedupWindow time.Duration, interruptThreshold float64) *Gateway {
	if dedupWindow <= 0 {
		dedupWindow = DEFAULT_DEDUP_WINDOW
	}
	if interruptThreshold <= 0 {
		interruptThreshold = DEFAULT_INTERRUPT_THRESHOLD
	}
	return &Gateway{
		runs:               runs,
		sessions:           sessions,
		definitions:        definitions,
		classifier:         classifier,
		engine:             engine,
		dedup:              c.New(dedupWindow, time.Minute),
		dedupWindow:        dedupWindow,
		interruptThreshold: interruptThreshold,
	}
}

// Handle processes one inbound message end to end and returns the shaped
// result for the transport to deliver.
func (g *Gateway) Handle(ctx context.Context, msg *model.Message) (*model.EngineResult, error) {
	if msg.SessionId == "" {
		return nil, fmt.Errorf("message without session id")
	}
	if g.isDuplicate(msg) {
		metrics.GatewayDedup.Inc()
		logger.Debug("duplicate message suppressed", zap.String("session", msg.SessionId))
		return &model.EngineResult{Deduped: true}, nil
	}
	sess, err := g.loadOrCreateSession(ctx, msg.SessionId)
	if err != nil {
		return nil, err
	}
	hydrateIdentity(sess, msg)
	recordInbound(sess, msg)

	result, err := g.dispatch(ctx, sess, msg)
	if err != nil {
		return nil, err
	}
	recordReplies(sess, result)
	sess.UpdatedAt = time.Now()
	if err := g.sessions.Save(ctx, sess); err != nil {
		// snapshot loss is survivable, the run record is the truth
		logger.Warn("failed to save session snapshot", zap.String("session", sess.Id), zap.Error(err))
	}
	return result, nil
}

func (g *Gateway) dispatch(ctx context.Context, sess *model.Session, msg *model.Message) (*model.EngineResult, error) {
	if msg.Type == model.MESSAGE_TYPE_BUTTON && msg.Payload == RESUME_PAYLOAD {
		return g.ResumeSuspendedFlow(ctx, sess.Id)
	}

	run, def := g.loadActiveRun(ctx, sess)
	if run != nil {
		return g.continueRun(ctx, sess, run, def, msg)
	}
	return g.startNewFlow(ctx, sess, msg, "")
}

// continueRun feeds a message into an active run, unless the single
// interrupt rule fires: the classified intent selects a flow in a different
// module with confidence at or above the interrupt threshold while the run
// sits at a wait state. Then the active run is suspended, not cancelled, and
// the new flow starts.
func (g *Gateway) continueRun(ctx context.Context, sess *model.Session, run *model.FlowRun, def *model.FlowDefinition, msg *model.Message) (*model.EngineResult, error) {
	classification := g.classifier.Classify(ctx, msg.Content(), sess.History)

	switch classification.Intent {
	case model.INTENT_RESET:
		g.closeRun(ctx, sess, run, model.RUN_STATUS_CANCELLED)
		sess.SuspendedRunId = ""
		return &model.EngineResult{Replies: []model.Reply{{Content: resetReply}}}, nil
	case model.INTENT_CANCEL:
		g.closeRun(ctx, sess, run, model.RUN_STATUS_CANCELLED)
		return g.withResumeOffer(ctx, sess, &model.EngineResult{Replies: []model.Reply{{Content: cancelReply}}}), nil
	}

	if g.shouldInterrupt(ctx, classification, def, run) {
		logger.Info("interrupting active flow",
			zap.String("session", sess.Id),
			zap.String("activeFlow", run.FlowId),
			zap.String("intent", classification.Intent))
		if sess.SuspendedRunId != "" {
			// at most one suspended flow per session: a second interrupt
			// cancels the newer active run instead of stacking suspensions
			g.closeRun(ctx, sess, run, model.RUN_STATUS_CANCELLED)
		} else {
			sess.SuspendedRunId = run.Id
			sess.ActiveRunId = ""
			sess.ActiveContext = nil
			g.saveRun(ctx, run)
		}
		return g.startNewFlow(ctx, sess, msg, classification.Intent)
	}

	flow.Set(run.Context, model.CTX_KEY_MESSAGE, msg.Content())
	flow.Set(run.Context, model.CTX_KEY_MESSAGE_TYPE, string(msg.Type))
	flow.Set(run.Context, model.CTX_KEY_INTENT, classification.Intent)
	if msg.Location != nil {
		flow.Set(run.Context, model.CTX_KEY_LOCATION, msg.Location)
		sess.Location = msg.Location
	}
	result, err := g.engine.Resume(ctx, def, run, eventFromMessage(msg), msg)
	if err != nil {
		if errors.Is(err, model.ErrRunFinished) {
			sess.ActiveRunId = ""
			sess.ActiveContext = nil
			return g.startNewFlow(ctx, sess, msg, "")
		}
		return nil, err
	}
	g.saveRun(ctx, run)
	return g.finishPass(ctx, sess, run, result), nil
}

func (g *Gateway) startNewFlow(ctx context.Context, sess *model.Session, msg *model.Message, intent string) (*model.EngineResult, error) {
	if intent == "" {
		classification := g.classifier.Classify(ctx, msg.Content(), sess.History)
		intent = classification.Intent
	}
	defs, err := g.definitions.List(ctx)
	if err != nil {
		return nil, err
	}
	def := flow.FindFlowByIntent(defs, intent, "", msg.Content())
	if def == nil {
		logger.Info("no flow for intent", zap.String("intent", intent), zap.String("session", sess.Id))
		return g.withResumeOffer(ctx, sess, &model.EngineResult{Replies: []model.Reply{{Content: unknownReply}}}), nil
	}

	run := &model.FlowRun{
		Id:          uuid.New().String(),
		FlowId:      def.Id,
		SessionId:   sess.Id,
		PhoneNumber: sess.PhoneNumber,
		Status:      model.RUN_STATUS_ACTIVE,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	run.Context = flow.NewContext(def.Id, run.Id, def.InitialState)
	flow.HydrateFromSession(run.Context, sess)
	flow.Set(run.Context, model.CTX_KEY_MESSAGE, msg.Content())
	flow.Set(run.Context, model.CTX_KEY_MESSAGE_TYPE, string(msg.Type))
	flow.Set(run.Context, model.CTX_KEY_INTENT, intent)
	if msg.Location != nil {
		flow.Set(run.Context, model.CTX_KEY_LOCATION, msg.Location)
	}

	sess.ActiveRunId = run.Id
	result, err := g.engine.Start(ctx, def, run, msg)
	if err != nil {
		return nil, err
	}
	g.saveRun(ctx, run)
	return g.finishPass(ctx, sess, run, result), nil
}

// ResumeSuspendedFlow reactivates the session's suspended flow, making it
// the active run again. The suspended context is retrieved intact; the next
// message feeds the wait state the flow halted at.
func (g *Gateway) ResumeSuspendedFlow(ctx context.Context, sessionId string) (*model.EngineResult, error) {
	sess, err := g.loadOrCreateSession(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if sess.SuspendedRunId == "" {
		return &model.EngineResult{Replies: []model.Reply{{Content: unknownReply}}}, nil
	}
	run, err := g.runs.Get(ctx, sess.SuspendedRunId)
	if err != nil {
		sess.SuspendedRunId = ""
		g.sessions.Save(ctx, sess)
		return nil, err
	}
	// the slot being reclaimed may still hold a live run; cancel it instead
	// of leaving it orphaned in the store with a non terminal status
	if sess.ActiveRunId != "" && sess.ActiveRunId != run.Id {
		if active, err := g.runs.Get(ctx, sess.ActiveRunId); err == nil && !active.Finished() {
			g.closeRun(ctx, sess, active, model.RUN_STATUS_CANCELLED)
		} else {
			sess.ActiveRunId = ""
			sess.ActiveContext = nil
		}
	}
	sess.ActiveRunId = run.Id
	sess.SuspendedRunId = ""
	sess.ActiveContext = run.Context
	sess.UpdatedAt = time.Now()
	if err := g.sessions.Save(ctx, sess); err != nil {
		logger.Warn("failed to save session snapshot", zap.String("session", sess.Id), zap.Error(err))
	}
	logger.Info("resumed suspended flow", zap.String("session", sess.Id), zap.String("run", run.Id))
	return &model.EngineResult{
		RunId:     run.Id,
		FlowId:    run.FlowId,
		NextState: run.CurrentState,
		Replies:   []model.Reply{{Content: "Picking up where we left off."}},
	}, nil
}

// loadActiveRun reads the active run for the session: the snapshot context
// is consulted for freshness, the durable record is the source of truth, and
// the two are merged with the documented precedence.
func (g *Gateway) loadActiveRun(ctx context.Context, sess *model.Session) (*model.FlowRun, *model.FlowDefinition) {
	if sess.ActiveRunId == "" {
		return nil, nil
	}
	run, err := g.runs.Get(ctx, sess.ActiveRunId)
	if err != nil {
		logger.Warn("active run not loadable, dropping reference", zap.String("run", sess.ActiveRunId), zap.Error(err))
		sess.ActiveRunId = ""
		sess.ActiveContext = nil
		return nil, nil
	}
	if run.Finished() {
		sess.ActiveRunId = ""
		sess.ActiveContext = nil
		return nil, nil
	}
	flow.MergeSessionContext(run.Context, sess)
	def, err := g.definitions.Get(ctx, run.FlowId)
	if err != nil {
		logger.Error("definition missing for active run", zap.String("flow", run.FlowId), zap.Error(err))
		g.closeRun(ctx, sess, run, model.RUN_STATUS_FAILED)
		return nil, nil
	}
	return run, def
}

// shouldInterrupt is the single explicit interrupt policy: confidence at or
// above the threshold, a selectable flow in a different module, and the
// active run parked at a wait state. Everything else feeds the waiting
// state.
func (g *Gateway) shouldInterrupt(ctx context.Context, classification *model.ClassificationResult, activeDef *model.FlowDefinition, run *model.FlowRun) bool {
	if classification.Confidence < g.interruptThreshold || classification.Unknown() {
		return false
	}
	state, ok := activeDef.States[run.CurrentState]
	if !ok || state.Type != model.STATE_TYPE_WAIT {
		return false
	}
	defs, err := g.definitions.List(ctx)
	if err != nil {
		return false
	}
	candidate := flow.FindFlowByIntent(defs, classification.Intent, "", "")
	return candidate != nil && candidate.Module != activeDef.Module
}

// finishPass settles the session after an engine pass: a completed run folds
// its history into the session and surfaces the resume offer for any
// suspended flow; an unfinished run refreshes the snapshot cache.
func (g *Gateway) finishPass(ctx context.Context, sess *model.Session, run *model.FlowRun, result *model.EngineResult) *model.EngineResult {
	if run.Finished() {
		flow.PreserveHistory(sess, run.Context)
		sess.ActiveRunId = ""
		sess.ActiveContext = nil
		return g.withResumeOffer(ctx, sess, result)
	}
	sess.ActiveContext = run.Context
	return result
}

func (g *Gateway) withResumeOffer(ctx context.Context, sess *model.Session, result *model.EngineResult) *model.EngineResult {
	if sess.SuspendedRunId == "" {
		return result
	}
	run, err := g.runs.Get(ctx, sess.SuspendedRunId)
	if err != nil {
		sess.SuspendedRunId = ""
		return result
	}
	offer := &model.ResumeOffer{RunId: run.Id, FlowId: run.FlowId}
	if def, err := g.definitions.Get(ctx, run.FlowId); err == nil {
		offer.FlowName = def.Name
	}
	name := offer.FlowName
	if name == "" {
		name = "previous"
	}
	result.ResumeOffer = offer
	result.Replies = append(result.Replies, model.Reply{
		Content: fmt.Sprintf("You have an unfinished %s conversation. Want to continue it?", name),
		Buttons: []model.Button{{Id: RESUME_PAYLOAD, Title: "Resume"}},
	})
	return result
}

func (g *Gateway) closeRun(ctx context.Context, sess *model.Session, run *model.FlowRun, status model.RunStatus) {
	run.Status = status
	run.UpdatedAt = time.Now()
	metrics.FlowsCompleted.WithLabelValues(string(status)).Inc()
	g.saveRun(ctx, run)
	flow.PreserveHistory(sess, run.Context)
	sess.ActiveRunId = ""
	sess.ActiveContext = nil
}

func (g *Gateway) saveRun(ctx context.Context, run *model.FlowRun) {
	if err := g.runs.Save(ctx, run); err != nil {
		logger.Error("failed to save flow run", zap.String("run", run.Id), zap.Error(err))
	}
}

func (g *Gateway) loadOrCreateSession(ctx context.Context, sessionId string) (*model.Session, error) {
	sess, err := g.sessions.Get(ctx, sessionId)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return &model.Session{Id: sessionId, UpdatedAt: time.Now()}, nil
		}
		return nil, err
	}
	return sess, nil
}

// isDuplicate suppresses exact repeats of a message inside the dedup window.
// go-cache Add fails when the key is already present and not expired, which
// is exactly the trailing window semantics needed here. Messages without
// matchable content (location pins) are never deduped: their coordinates
// legitimately differ even when sent back to back.
func (g *Gateway) isDuplicate(msg *model.Message) bool {
	if msg.Content() == "" {
		return false
	}
	sum := sha1.Sum([]byte(string(msg.Type) + "|" + msg.Content()))
	key := msg.SessionId + ":" + hex.EncodeToString(sum[:])
	return g.dedup.Add(key, struct{}{}, g.dedupWindow) != nil
}

// hydrateIdentity reconciles identity fields carried on the message with the
// session. New non empty values overwrite; a message that omits auth fields
// never downgrades previously established authentication.
func hydrateIdentity(sess *model.Session, msg *model.Message) {
	if msg.UserId != "" {
		sess.UserId = msg.UserId
	}
	if msg.PhoneNumber != "" {
		sess.PhoneNumber = msg.PhoneNumber
	}
	if msg.AuthToken != "" {
		sess.AuthToken = msg.AuthToken
	}
	if msg.Location != nil {
		sess.Location = msg.Location
	}
}

func recordInbound(sess *model.Session, msg *model.Message) {
	content := msg.Content()
	if content == "" {
		return
	}
	sess.History = model.AppendHistory(sess.History, model.HistoryEntry{
		Role:    model.HISTORY_ROLE_USER,
		Content: content,
		At:      time.Now(),
	})
}

func recordReplies(sess *model.Session, result *model.EngineResult) {
	for _, reply := range result.Replies {
		sess.History = model.AppendHistory(sess.History, model.HistoryEntry{
			Role:    model.HISTORY_ROLE_BOT,
			Content: reply.Content,
			At:      time.Now(),
		})
	}
}

func eventFromMessage(msg *model.Message) string {
	if msg.Type == model.MESSAGE_TYPE_BUTTON && msg.Payload != "" {
		return msg.Payload
	}
	return model.DEFAULT_EVENT
}
