// Package holdings derives initial per-asset holding quantities from
// persisted weights and prices.
package holdings

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/cartera/internal/domain"
	"github.com/aristath/cartera/internal/modules/portfolio"
)

// quantityScale matches the stored precision of holding quantities: eight
// decimal places.
const quantityScale = 8

// Engine computes initial holding quantities for portfolios. It is
// stateless: every derivation reads weights and prices back from the store
// and writes holdings through the upsert service, so re-running is
// idempotent by the (portfolio, asset, date) key.
type Engine struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewEngine creates a derivation engine over the upsert service.
func NewEngine(service *portfolio.Service, log zerolog.Logger) *Engine {
	return &Engine{
		service: service,
		log:     log.With().Str("component", "derivation").Logger(),
	}
}

// DeriveInitialHoldings computes quantity = (weight × V0) / price for every
// weight of the named portfolio, joining each asset's price on the
// portfolio's initial date, and upserts the resulting holdings keyed by
// (portfolio, asset, initial date).
//
// Missing portfolio, missing initial value, and missing initial date are
// structural failures and abort the derivation. A missing price, a
// non-positive price, and a non-positive computed quantity skip that asset
// with a warning. Zero weights on record yields an empty map, not an error.
func (e *Engine) DeriveInitialHoldings(portfolioName string) (map[string]domain.PortfolioHolding, error) {
	p, err := e.service.Portfolios().GetByName(portfolioName)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio %q: %w", portfolioName, err)
	}
	if p == nil {
		return nil, fmt.Errorf("portfolio %q not found", portfolioName)
	}
	if p.InitialValue.IsZero() {
		return nil, fmt.Errorf("portfolio %q has no initial value; cannot derive holdings", p.Name)
	}
	if p.InitialDate.IsZero() {
		return nil, fmt.Errorf("portfolio %q has no initial date; cannot derive holdings", p.Name)
	}

	log := e.log.With().Str("portfolio", p.Name).Logger()

	weights, err := e.service.Weights().GetByPortfolio(p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load weights for %q: %w", p.Name, err)
	}

	result := make(map[string]domain.PortfolioHolding)
	if len(weights) == 0 {
		log.Warn().Msg("Portfolio has no weights on record; nothing to derive")
		return result, nil
	}

	for _, w := range weights {
		price, err := e.service.Prices().GetByAssetAndDate(w.AssetID, p.InitialDate)
		if err != nil {
			return nil, fmt.Errorf("failed to load price for %q on %s: %w",
				w.AssetName, p.InitialDate.Format(domain.DateLayout), err)
		}
		if price == nil {
			log.Warn().
				Str("asset", w.AssetName).
				Str("date", p.InitialDate.Format(domain.DateLayout)).
				Msg("No price on initial date; skipping asset")
			continue
		}
		// Re-check positivity: the store constraint makes this unreachable
		// for ingested prices, but a directly injected row must not crash
		// the division below.
		if !price.Price.IsPositive() {
			log.Warn().
				Str("asset", w.AssetName).
				Str("price", price.Price.String()).
				Msg("Non-positive price on initial date; skipping asset")
			continue
		}

		quantity := w.InitialWeight.Mul(p.InitialValue).DivRound(price.Price, quantityScale)
		if quantity.Sign() <= 0 {
			log.Warn().
				Str("asset", w.AssetName).
				Str("quantity", quantity.String()).
				Msg("Computed quantity is not positive; skipping asset")
			continue
		}

		holding, err := e.service.UpsertHolding(p.ID, w.AssetID, p.InitialDate, quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to store holding for %q: %w", w.AssetName, err)
		}
		holding.AssetName = w.AssetName
		result[w.AssetName] = *holding

		log.Debug().
			Str("asset", w.AssetName).
			Str("weight", w.InitialWeight.String()).
			Str("price", price.Price.String()).
			Str("quantity", quantity.String()).
			Msg("Holding derived")
	}

	log.Info().Int("holdings", len(result)).Int("weights", len(weights)).Msg("Derivation completed")
	return result, nil
}

// BatchResult collects per-portfolio outcomes of DeriveAll.
type BatchResult struct {
	Holdings map[string]map[string]domain.PortfolioHolding
	Failures map[string]error
}

// DeriveAll runs DeriveInitialHoldings for every portfolio on record. A
// structural failure in one portfolio is recorded and the batch continues
// with the rest.
func (e *Engine) DeriveAll() (*BatchResult, error) {
	portfolios, err := e.service.Portfolios().GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}

	result := &BatchResult{
		Holdings: make(map[string]map[string]domain.PortfolioHolding),
		Failures: make(map[string]error),
	}

	for _, p := range portfolios {
		holdings, err := e.DeriveInitialHoldings(p.Name)
		if err != nil {
			e.log.Error().Err(err).Str("portfolio", p.Name).Msg("Derivation failed for portfolio")
			result.Failures[p.Name] = err
			continue
		}
		result.Holdings[p.Name] = holdings
	}

	return result, nil
}
