package pack

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jmerrifield20/sundew/internal/persona"
)

// Source reports where a materialized cache came from.
type Source string

const (
	SourceFile    Source = "file"
	SourceBuiltin Source = "builtin"
)

// File is the on-disk template cache format.
type File struct {
	Seed      int64              `json:"seed"`
	Company   string             `json:"company"`
	Artifacts []persona.Artifact `json:"artifacts"`
}

// LoadFile reads a template cache. The cache must belong to p and hold at
// least one artifact.
func LoadFile(path string, p persona.Persona) ([]persona.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template cache: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing template cache %s: %w", path, err)
	}
	if f.Seed != p.Seed || f.Company != p.CompanyName {
		return nil, fmt.Errorf("template cache %s belongs to persona %d/%s, not %d/%s",
			path, f.Seed, f.Company, p.Seed, p.CompanyName)
	}
	if len(f.Artifacts) == 0 {
		return nil, fmt.Errorf("template cache %s: %w", path, persona.ErrNoArtifact)
	}
	for i, a := range f.Artifacts {
		if a.Path == "" || a.StatusCode < 100 || a.StatusCode > 599 {
			return nil, fmt.Errorf("template cache %s: artifact %d is invalid", path, i)
		}
	}
	return f.Artifacts, nil
}

// WriteFile stores artifacts for p in the template cache format.
func WriteFile(path string, p persona.Persona, artifacts []persona.Artifact) error {
	data, err := json.MarshalIndent(File{Seed: p.Seed, Company: p.CompanyName, Artifacts: artifacts}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding template cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing template cache: %w", err)
	}
	return nil
}

// Materialize builds the artifact cache for p. A readable cache file wins;
// a missing or unusable one falls back to the built-in pack.
func Materialize(p persona.Persona, cacheFile string, logger *zap.Logger) (*persona.Cache, Source) {
	if cacheFile != "" {
		artifacts, err := LoadFile(cacheFile, p)
		if err == nil {
			logger.Info("loaded template cache", zap.String("path", cacheFile), zap.Int("artifacts", len(artifacts)))
			return persona.NewCache(artifacts), SourceFile
		}
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("no template cache, using built-in pack", zap.String("path", cacheFile))
		} else {
			logger.Warn("template cache unusable, using built-in pack", zap.String("path", cacheFile), zap.Error(err))
		}
	}
	return persona.NewCache(Build(p)), SourceBuiltin
}
