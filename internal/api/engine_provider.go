package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/raymondhs/char-rnn/internal/inference"
	"github.com/raymondhs/char-rnn/internal/vocab"
)

// LoadedModel is a checkpoint held by a provider.
type LoadedModel struct {
	ID       string
	Path     string
	Engine   inference.Engine
	Vocab    *vocab.Vocabulary
	Defaults inference.GenDefaults
}

type EngineProvider interface {
	WithEngine(ctx context.Context, modelID string, fn func(m *LoadedModel) error) error
	ListModels() ([]string, error)
}

type EngineProviderConfig struct {
	DefaultModelPath string
	ModelsPath       string
	Loader           inference.Loader
}

// CachedEngineProvider loads each checkpoint once and shares it between
// requests. Engines are safe for concurrent Recase calls, so entries are not
// serialised.
type CachedEngineProvider struct {
	cfg   EngineProviderConfig
	mu    sync.Mutex
	cache map[string]*LoadedModel
}

const (
	envModelsDir    = "TRUECASE_MODELS_DIR"
	checkpointExt   = ".safetensors"
	defaultModelTag = "default"
)

func NewCachedEngineProvider(cfg EngineProviderConfig) *CachedEngineProvider {
	return &CachedEngineProvider{
		cfg:   cfg,
		cache: make(map[string]*LoadedModel),
	}
}

func (p *CachedEngineProvider) WithEngine(ctx context.Context, modelID string, fn func(m *LoadedModel) error) error {
	path, err := p.resolveModelPath(modelID)
	if err != nil {
		return err
	}
	entry, err := p.getOrLoad(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(entry)
}

// Close releases every cached engine.
func (p *CachedEngineProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for path, entry := range p.cache {
		if err := entry.Engine.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.cache, path)
	}
	return firstErr
}

func (p *CachedEngineProvider) getOrLoad(path string) (*LoadedModel, error) {
	p.mu.Lock()
	entry, ok := p.cache[path]
	p.mu.Unlock()
	if ok {
		return entry, nil
	}

	result, err := p.cfg.Loader.Load(path)
	if err != nil {
		return nil, err
	}
	newEntry := &LoadedModel{
		ID:       modelName(path),
		Path:     path,
		Engine:   result.Engine,
		Vocab:    result.Vocab,
		Defaults: result.GenerationDefaults,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.cache[path]; ok {
		_ = newEntry.Engine.Close()
		return existing, nil
	}
	p.cache[path] = newEntry
	return newEntry, nil
}

// ListModels returns checkpoint names without their extension.
func (p *CachedEngineProvider) ListModels() ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	if p.cfg.DefaultModelPath != "" {
		add(modelName(p.cfg.DefaultModelPath))
	}
	if dir := p.modelsDir(); dir != "" {
		models, err := DiscoverModels(dir)
		if err != nil {
			return nil, err
		}
		for _, m := range models {
			add(modelName(m))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (p *CachedEngineProvider) resolveModelPath(modelID string) (string, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == defaultModelTag {
		modelID = ""
	}
	if modelID != "" {
		if looksLikePath(modelID) && fileExists(modelID) {
			return filepath.Clean(modelID), nil
		}
		if strings.ContainsRune(modelID, filepath.Separator) {
			return "", fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
		}
		if p.cfg.DefaultModelPath != "" && modelName(p.cfg.DefaultModelPath) == modelID {
			return filepath.Clean(p.cfg.DefaultModelPath), nil
		}
		modelsDir := p.modelsDir()
		if modelsDir == "" {
			return "", fmt.Errorf("%w: models-path is required to resolve %q", ErrModelNotFound, modelID)
		}
		if resolved := resolveInDir(modelsDir, modelID); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: %q not found in %s", ErrModelNotFound, modelID, modelsDir)
	}

	if p.cfg.DefaultModelPath != "" {
		return filepath.Clean(p.cfg.DefaultModelPath), nil
	}
	modelsDir := p.modelsDir()
	if modelsDir == "" {
		return "", newInvalidRequest("model", "model is required")
	}
	models, err := DiscoverModels(modelsDir)
	if err != nil {
		return "", err
	}
	switch len(models) {
	case 1:
		return models[0], nil
	case 0:
		return "", fmt.Errorf("%w: no %s checkpoints in %s", ErrModelNotFound, checkpointExt, modelsDir)
	default:
		return "", newInvalidRequest("model", fmt.Sprintf("multiple checkpoints found in %s; specify model", modelsDir))
	}
}

func (p *CachedEngineProvider) modelsDir() string {
	if strings.TrimSpace(p.cfg.ModelsPath) != "" {
		return strings.TrimSpace(p.cfg.ModelsPath)
	}
	return strings.TrimSpace(os.Getenv(envModelsDir))
}

func modelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func looksLikePath(v string) bool {
	if strings.Contains(v, string(filepath.Separator)) {
		return true
	}
	return strings.HasSuffix(strings.ToLower(v), checkpointExt)
}

func resolveInDir(dir, name string) string {
	if dir == "" {
		return ""
	}
	cand := filepath.Join(dir, name)
	if fileExists(cand) {
		return cand
	}
	if !strings.HasSuffix(strings.ToLower(name), checkpointExt) {
		cand = filepath.Join(dir, name+checkpointExt)
		if fileExists(cand) {
			return cand
		}
	}
	return ""
}

// DiscoverModels lists the .safetensors checkpoints directly inside dir.
func DiscoverModels(dir string) ([]string, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("models path is not a directory: %s", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	models := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), checkpointExt) {
			continue
		}
		models = append(models, filepath.Join(dir, name))
	}
	return models, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
