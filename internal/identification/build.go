package identification

import (
	"context"

	"github.com/rs/zerolog/log"

	"agroguard/internal/aiclient"
	"agroguard/internal/config"
	"agroguard/internal/vocabulary"
)

// Build assembles the provider chain from configuration. Providers without
// credentials are left out; the heuristic is always the fallback.
func Build(ctx context.Context, cfg config.Config, client *aiclient.Client, catalog PestCatalog, vocab *vocabulary.Vocabulary) *Chain {
	var providers []Identifier

	if client != nil && client.Configured() {
		providers = append(providers, NewHostedProvider(client, catalog, vocab))
	}
	if cfg.LocalModel.Script != "" {
		providers = append(providers, NewScriptProvider(cfg.LocalModel.Interpreter, cfg.LocalModel.Script, cfg.LocalModel.Dir, catalog, vocab))
	}
	if cfg.Detection.APIKey != "" {
		providers = append(providers, NewDetectionProvider(cfg.Detection, catalog, vocab))
	}
	if cfg.Vision.APIKey != "" {
		model, err := NewGoogleVisionModel(ctx, cfg.Vision)
		if err != nil {
			log.Warn().Err(err).Msg("Vision provider disabled")
		} else {
			providers = append(providers, NewVisionProvider(model, catalog, vocab))
		}
	}

	chain := NewChain(NewHeuristicProvider(catalog, vocab, DefaultRandom()), providers...)
	log.Info().Strs("providers", chain.Providers()).Msg("Identification chain ready")
	return chain
}
