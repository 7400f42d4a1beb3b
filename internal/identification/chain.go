package identification

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"agroguard/internal/metrics"
	"agroguard/internal/models"
)

// Identifier is one identification provider. Returning an error makes the
// chain move on to the next provider; returning a result ends the chain.
type Identifier interface {
	Name() string
	Identify(ctx context.Context, img Image) (*Result, error)
}

// PestCatalog supplies the populated pest list that predictions are matched
// against.
type PestCatalog interface {
	ListPests(ctx context.Context) ([]models.PopulatedPest, error)
}

// Chain tries providers in order and falls back to a final identifier that
// is expected to always answer.
type Chain struct {
	providers []Identifier
	fallback  Identifier
}

func NewChain(fallback Identifier, providers ...Identifier) *Chain {
	return &Chain{providers: providers, fallback: fallback}
}

// Providers lists provider names in the order they are tried.
func (c *Chain) Providers() []string {
	names := make([]string, 0, len(c.providers)+1)
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	if c.fallback != nil {
		names = append(names, c.fallback.Name())
	}
	return names
}

func (c *Chain) Identify(ctx context.Context, img Image) (*Result, error) {
	log.Info().Str("file", img.Filename).Strs("providers", c.Providers()).Msg("Starting pest identification")

	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := run(ctx, p, img)
		if err != nil {
			log.Warn().Err(err).Str("provider", p.Name()).Msg("Identification provider failed, trying next")
			continue
		}
		if res.NotAgricultural() {
			log.Info().Str("provider", p.Name()).Msg("Provider judged image not agricultural, stopping")
		}
		return res, nil
	}

	if c.fallback == nil {
		return nil, errors.New("no identification provider produced a result")
	}
	res, err := run(ctx, c.fallback, img)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func run(ctx context.Context, p Identifier, img Image) (*Result, error) {
	start := time.Now()
	res, err := p.Identify(ctx, img)
	metrics.IdentificationDurationSeconds.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.IdentificationsTotal.WithLabelValues(p.Name(), "error").Inc()
		return nil, err
	case res == nil:
		metrics.IdentificationsTotal.WithLabelValues(p.Name(), "error").Inc()
		return nil, errors.New(p.Name() + ": provider returned no result")
	case res.PrimaryMatch != nil:
		metrics.IdentificationsTotal.WithLabelValues(p.Name(), "match").Inc()
	case res.NotAgricultural():
		metrics.IdentificationsTotal.WithLabelValues(p.Name(), "not_agricultural").Inc()
	default:
		metrics.IdentificationsTotal.WithLabelValues(p.Name(), "no_match").Inc()
	}

	res.Provider = p.Name()
	res.AnalysisComplete = true
	if res.AlternativeMatches == nil {
		res.AlternativeMatches = []Match{}
	}
	log.Debug().
		Str("provider", p.Name()).
		Bool("matched", res.PrimaryMatch != nil).
		Str("error", res.Error).
		Dur("elapsed", time.Since(start)).
		Msg("Identification provider answered")
	return res, nil
}
