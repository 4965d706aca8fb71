// Package bootstrap builds the persona engine at startup. Nothing is served
// until every canary the engine could emit has been proven fake.
package bootstrap

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jmerrifield20/sundew/internal/canary"
	"github.com/jmerrifield20/sundew/internal/config"
	"github.com/jmerrifield20/sundew/internal/pack"
	"github.com/jmerrifield20/sundew/internal/persona"
)

// ResolvePersona loads the configured persona file, or derives a persona
// from the configured seed.
func ResolvePersona(cfg config.PersonaConfig) (persona.Persona, error) {
	if cfg.File != "" {
		p, err := persona.Load(cfg.File)
		if err != nil {
			return persona.Persona{}, fmt.Errorf("load persona: %w", err)
		}
		return p, nil
	}
	seed, err := persona.ResolveSeed(cfg.Seed)
	if err != nil {
		return persona.Persona{}, err
	}
	return persona.Derive(seed), nil
}

// Prepare resolves the persona, materializes its artifacts and validates
// every canary before returning the engine. A validation failure returns a
// *canary.ViolationError and no engine.
func Prepare(cfg config.Config, logger *zap.Logger) (*persona.Engine, error) {
	dist, err := persona.ParseDistribution(cfg.Persona.LatencyDistribution)
	if err != nil {
		return nil, err
	}
	p, err := ResolvePersona(cfg.Persona)
	if err != nil {
		return nil, err
	}

	cache, source := pack.Materialize(p, cfg.Pack.CacheFile, logger)
	if err := Check(p, cache); err != nil {
		return nil, err
	}

	logger.Info("persona ready",
		zap.Int64("seed", p.Seed),
		zap.String("company", p.CompanyName),
		zap.String("industry", p.Industry),
		zap.String("framework", p.Framework),
		zap.String("artifact_source", string(source)),
		zap.Int("artifacts", cache.Len()),
	)
	return persona.NewEngine(p, cache, persona.NewLatencySampler(p, dist, nil)), nil
}

// Check validates the persona's declared canaries together with every
// canary-shaped value found in the artifacts and persona headers.
func Check(p persona.Persona, cache *persona.Cache) error {
	tokens := p.CanaryTokens()
	tokens = append(tokens, canary.Extract(p.ServerHeader)...)
	for _, v := range p.ExtraHeaders {
		tokens = append(tokens, canary.Extract(v)...)
	}
	for _, a := range cache.Artifacts() {
		tokens = append(tokens, canary.Extract(a.Body)...)
		for _, v := range a.Headers {
			tokens = append(tokens, canary.Extract(v)...)
		}
	}
	return canary.Validate(tokens)
}
