package classify

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chatflow/chatflow/config"
	"github.com/chatflow/chatflow/logger"
	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/persistence"
	"github.com/chatflow/chatflow/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TrainingSampler collects confident generative tier answers as future
// training data for the fast model. Offer never blocks the classification
// path: a full buffer drops the sample.
type TrainingSampler struct {
	worker        *util.Worker
	minConfidence float64
	encoder       util.EncoderDecoder[persistence.TrainingSample]
	sink          func(data []byte) error
}

func NewTrainingSampler(conf config.SamplerConfig, queue persistence.TrainingQueue, wg *sync.WaitGroup) (*TrainingSampler, error) {
	ts := &TrainingSampler{
		minConfidence: conf.MinConfidence,
		encoder:       util.NewJsonEncoderDecoder[persistence.TrainingSample](),
	}
	switch conf.SinkType {
	case config.SAMPLER_SINK_QUEUE:
		ts.sink = func(data []byte) error {
			return queue.Push(context.Background(), data)
		}
	case config.SAMPLER_SINK_LOG_FILE:
		fileLogger, err := newSampleFileLogger(conf.FileName)
		if err != nil {
			return nil, err
		}
		ts.sink = func(data []byte) error {
			fileLogger.Info("sample", zap.ByteString("data", data))
			return nil
		}
	case config.SAMPLER_SINK_NONE, "":
		ts.sink = func([]byte) error { return nil }
	default:
		return nil, fmt.Errorf("unknown sampler sink type %s", conf.SinkType)
	}
	capacity := conf.Capacity
	if capacity <= 0 {
		capacity = 128
	}
	ts.worker = util.NewWorker("training-sampler", wg, ts.handle, capacity)
	ts.worker.Start()
	return ts, nil
}

// Offer queues a sample when its confidence clears the floor. Non blocking
// side effect; the caller never waits on it.
func (ts *TrainingSampler) Offer(text string, result *model.ClassificationResult) {
	if result.Confidence < ts.minConfidence {
		return
	}
	sample := persistence.TrainingSample{
		Id:         uuid.New().String(),
		Text:       text,
		Intent:     result.Intent,
		Confidence: result.Confidence,
		Provider:   string(result.Provider),
		At:         time.Now(),
	}
	if !ts.worker.TrySend(sample) {
		logger.Warn("training sampler buffer full, dropping sample", zap.String("intent", sample.Intent))
	}
}

func (ts *TrainingSampler) handle(task util.Task) error {
	sample, ok := task.(persistence.TrainingSample)
	if !ok {
		return fmt.Errorf("unexpected task type in training sampler")
	}
	data, err := ts.encoder.Encode(sample)
	if err != nil {
		return err
	}
	return ts.sink(data)
}

func (ts *TrainingSampler) Stop() {
	ts.worker.Stop()
}

func newSampleFileLogger(fileName string) (*zap.Logger, error) {
	enccoderConfig := zap.NewProductionEncoderConfig()
	enccoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	enccoderConfig.StacktraceKey = ""
	fileEncoder := zapcore.NewJSONEncoder(enccoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer := zapcore.AddSync(logFile)
	core := zapcore.NewTee(zapcore.NewCore(fileEncoder, writer, zapcore.InfoLevel))
	return zap.New(core), nil
}
