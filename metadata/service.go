package metadata

import (
	"context"
	"fmt"
	"time"

	c "github.com/patrickmn/go-cache"

	"github.com/chatflow/chatflow/executor"
	"github.com/chatflow/chatflow/flow"
	"github.com/chatflow/chatflow/logger"
	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/persistence"
	"go.uber.org/zap"
)

const definitionCacheTTL = 30 * time.Second
const listCacheKey = "__all__"

type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Service is the authoring boundary for flow definitions: every save passes
// validation first, and reads go through a short lived cache so selection on
// the hot message path does not hit the store for every inbound message.
// Edits invalidate the cache, keeping definitions hot reloadable.
type Service struct {
	storage  persistence.DefinitionStore
	registry *executor.Registry
	cache    *c.Cache
}

func NewService(storage persistence.DefinitionStore, registry *executor.Registry) *Service {
	return &Service{
		storage:  storage,
		registry: registry,
		cache:    c.New(definitionCacheTTL, 2*definitionCacheTTL),
	}
}

// Save validates and persists a definition. Hard validation failures reject
// the save; warnings are returned to the author alongside success.
func (s *Service) Save(ctx context.Context, def *model.FlowDefinition) ([]string, error) {
	warnings, err := flow.Validate(def, s.registry)
	if err != nil {
		return nil, ValidationError{Message: err.Error()}
	}
	now := time.Now()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now
	if err := s.storage.Save(ctx, def); err != nil {
		return nil, err
	}
	s.cache.Flush()
	logger.Info("flow definition saved", zap.String("flow", def.Id), zap.Int("version", def.Version))
	for _, w := range warnings {
		logger.Warn("flow definition warning", zap.String("flow", def.Id), zap.String("warning", w))
	}
	return warnings, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.FlowDefinition, error) {
	if cached, found := s.cache.Get(id); found {
		return cached.(*model.FlowDefinition), nil
	}
	def, err := s.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(id, def)
	return def, nil
}

func (s *Service) List(ctx context.Context) ([]*model.FlowDefinition, error) {
	if cached, found := s.cache.Get(listCacheKey); found {
		return cached.([]*model.FlowDefinition), nil
	}
	defs, err := s.storage.List(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(listCacheKey, defs)
	return defs, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.storage.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Flush()
	return nil
}
