package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/born-ml/tokenmodels/internal/config"
	"github.com/born-ml/tokenmodels/models"
)

var errNoModelPath = errors.New("model path is required (--model-path)")

// openModel builds the model described by cfg.
func openModel(cfg config.ModelConfig) (*models.Shared, error) {
	if cfg.Path == "" {
		return nil, errNoModelPath
	}

	var (
		m   *models.Shared
		err error
	)
	switch cfg.Format {
	case config.FormatHuggingFace:
		m, err = models.LoadFromHuggingFace(cfg.Path)
	case config.FormatGGUF:
		m, err = models.LoadFromGGUF(cfg.Path)
	case config.FormatTiktoken:
		m, err = models.BPEFromTiktoken(cfg.Path, cfg.BPEOptions())
	case config.FormatNative, "":
		m, err = openNative(cfg)
	default:
		return nil, fmt.Errorf("unknown model format %q (want native|hf|gguf|tiktoken)", cfg.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", cfg.Path, err)
	}

	kind, err := m.Kind()
	if err != nil {
		return nil, err
	}
	slog.Debug("model loaded", "path", cfg.Path, "format", cfg.Format, "kind", kind.String())
	return m, nil
}

func openNative(cfg config.ModelConfig) (*models.Shared, error) {
	kind, err := models.ParseKind(cfg.Type)
	if err != nil {
		return nil, err
	}

	switch kind {
	case models.KindBPE:
		if cfg.MergesPath == "" {
			return nil, errors.New("BPE needs a merges file (--model-merges-path)")
		}
		return models.BPEFromFile(cfg.Path, cfg.MergesPath, cfg.BPEOptions())
	case models.KindUnigram:
		return models.UnigramFromFile(cfg.Path)
	case models.KindWordLevel:
		return models.WordLevelFromFile(cfg.Path, cfg.UnkTokenPtr())
	case models.KindWordPiece:
		return models.WordPieceFromFile(cfg.Path, cfg.WordPieceOptions())
	}
	return nil, fmt.Errorf("unsupported model type %s", kind)
}

func loadActiveModel() (*models.Shared, error) {
	cfg, err := requireConfig()
	if err != nil {
		return nil, err
	}
	return openModel(cfg.Model)
}
