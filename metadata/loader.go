package metadata

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/chatflow/chatflow/logger"
	"github.com/chatflow/chatflow/model"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LoadSeedDir reads flow definition files (.yaml, .yml, .json) from a
// directory and saves them through the service. Invalid files are logged and
// skipped so one bad definition never blocks boot. Returns the number of
// definitions loaded.
func (s *Service) LoadSeedDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("flow seed directory does not exist", zap.String("dir", dir))
			return 0, nil
		}
		return 0, err
	}
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		def, err := parseDefinitionFile(path, ext)
		if err != nil {
			logger.Error("skipping invalid flow definition file", zap.String("file", path), zap.Error(err))
			continue
		}
		if _, err := s.Save(ctx, def); err != nil {
			logger.Error("skipping flow definition that failed validation", zap.String("file", path), zap.Error(err))
			continue
		}
		loaded++
	}
	logger.Info("flow seed directory loaded", zap.String("dir", dir), zap.Int("count", loaded))
	return loaded, nil
}

func parseDefinitionFile(path string, ext string) (*model.FlowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var def model.FlowDefinition
	if ext == ".json" {
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, err
		}
	} else {
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, err
		}
	}
	return &def, nil
}
