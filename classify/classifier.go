package classify

import (
	"context"
	"time"

	"github.com/chatflow/chatflow/logger"
	"github.com/chatflow/chatflow/metrics"
	"github.com/chatflow/chatflow/model"
	"go.uber.org/zap"
)

const DEFAULT_CONFIDENCE_THRESHOLD = 0.5

// modelTier and generativeTier let tests substitute fakes for the network
// backed tiers. A nil tier simply abstains.
type modelTier interface {
	Classify(ctx context.Context, text string) (*model.ClassificationResult, error)
}

type generativeTier interface {
	Classify(ctx context.Context, text string, history []model.HistoryEntry) (*model.ClassificationResult, error)
}

// Classifier is the tiered cascade: pattern fast path, primary/secondary
// model service, generative fallback, keyword heuristics, then safety net
// overrides. Classify never fails: a tier erroring means it abstained and
// the cascade continues; the heuristic tier is total.
type Classifier struct {
	modelClient modelTier
	generative  generativeTier
	sampler     *TrainingSampler
	threshold   float64
}

func NewClassifier(modelClient modelTier, generative generativeTier, sampler *TrainingSampler, threshold float64) *Classifier {
	if threshold <= 0 {
		threshold = DEFAULT_CONFIDENCE_THRESHOLD
	}
	return &Classifier{
		modelClient: modelClient,
		generative:  generative,
		sampler:     sampler,
		threshold:   threshold,
	}
}

// Classify turns raw text into an intent, degrading gracefully through the
// tiers. The optional history gives the generative tier conversational
// context for one word answers.
func (c *Classifier) Classify(ctx context.Context, text string, history []model.HistoryEntry) *model.ClassificationResult {
	started := time.Now()
	result := c.classify(ctx, text, history)
	result = applyOverrides(text, result)
	metrics.ClassifierTier.WithLabelValues(string(result.Provider)).Inc()
	metrics.ClassifyDuration.Observe(time.Since(started).Seconds())
	logger.Debug("classified message",
		zap.String("intent", result.Intent),
		zap.Float64("confidence", result.Confidence),
		zap.String("provider", string(result.Provider)))
	return result
}

func (c *Classifier) classify(ctx context.Context, text string, history []model.HistoryEntry) *model.ClassificationResult {
	if result := matchFastPath(text); result != nil {
		return result
	}

	var modelResult *model.ClassificationResult
	if c.modelClient != nil {
		result, err := c.modelClient.Classify(ctx, text)
		if err != nil {
			logger.Warn("model tier abstained", zap.Error(err))
		} else {
			result.Intent = normalizeIntent(result.Intent)
			if result.Confidence >= c.threshold && result.Intent != model.INTENT_UNKNOWN {
				return result
			}
			modelResult = result
		}
	}

	if c.generative != nil {
		result, err := c.generative.Classify(ctx, text, history)
		if err != nil {
			logger.Warn("generative tier abstained", zap.Error(err))
		} else {
			if c.sampler != nil {
				c.sampler.Offer(text, result)
			}
			if result.Confidence >= c.threshold && result.Intent != model.INTENT_UNKNOWN {
				return result
			}
			if modelResult == nil || result.Confidence > modelResult.Confidence {
				modelResult = result
			}
		}
	}

	heuristic := classifyHeuristic(text)
	// an unsure model answer still beats a thin heuristic one
	if modelResult != nil && modelResult.Confidence > heuristic.Confidence && modelResult.Intent != model.INTENT_UNKNOWN {
		return modelResult
	}
	return heuristic
}
