package portfolio

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/cartera/internal/database"
	"github.com/aristath/cartera/internal/domain"
)

// Service is the idempotent upsert service over the entity store. Every
// operation takes a natural key plus the mutable payload, validates, and
// writes inside one transaction, so re-running ingestion against the same
// source produces updates, never duplicates.
type Service struct {
	assets       *AssetRepository
	portfolios   *PortfolioRepository
	prices       *PriceRepository
	weights      *WeightRepository
	holdings     *HoldingRepository
	transactions *TransactionRepository
	log          zerolog.Logger
}

// NewService wires the per-entity repositories over one database.
func NewService(db *database.DB, log zerolog.Logger) *Service {
	conn := db.Conn()
	return &Service{
		assets:       NewAssetRepository(conn, log),
		portfolios:   NewPortfolioRepository(conn, log),
		prices:       NewPriceRepository(conn, log),
		weights:      NewWeightRepository(conn, log),
		holdings:     NewHoldingRepository(conn, log),
		transactions: NewTransactionRepository(conn, log),
		log:          log.With().Str("service", "portfolio").Logger(),
	}
}

// Assets exposes the asset repository for read paths.
func (s *Service) Assets() *AssetRepository { return s.assets }

// Portfolios exposes the portfolio repository for read paths.
func (s *Service) Portfolios() *PortfolioRepository { return s.portfolios }

// Prices exposes the price repository for read paths.
func (s *Service) Prices() *PriceRepository { return s.prices }

// Weights exposes the weight repository for read paths.
func (s *Service) Weights() *WeightRepository { return s.weights }

// Holdings exposes the holding repository for read paths.
func (s *Service) Holdings() *HoldingRepository { return s.holdings }

// Transactions exposes the transaction repository for read paths.
func (s *Service) Transactions() *TransactionRepository { return s.transactions }

// UpsertAsset creates or updates the asset keyed by name.
func (s *Service) UpsertAsset(name, symbol string) (*domain.Asset, error) {
	return s.assets.Upsert(domain.Asset{Name: name, Symbol: symbol})
}

// UpsertPortfolio creates or updates the portfolio keyed by name.
func (s *Service) UpsertPortfolio(name string, initialValue decimal.Decimal, initialDate time.Time) (*domain.Portfolio, error) {
	return s.portfolios.Upsert(domain.Portfolio{
		Name:         name,
		InitialValue: initialValue,
		InitialDate:  initialDate,
	})
}

// UpsertPrice creates or updates the price keyed by (asset name, date). The
// asset must already exist; a missing asset is a caller error, not a
// creatable condition.
func (s *Service) UpsertPrice(assetName string, date time.Time, price decimal.Decimal) (*domain.Price, error) {
	asset, err := s.assets.GetByName(assetName)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, fmt.Errorf("asset %q not found for price upsert", assetName)
	}

	return s.prices.Upsert(domain.Price{
		AssetID:   asset.ID,
		AssetName: asset.Name,
		Date:      date,
		Price:     price,
	})
}

// UpsertWeight creates or updates the weight keyed by (portfolio name, asset
// name).
func (s *Service) UpsertWeight(portfolioName, assetName string, weight decimal.Decimal) (*domain.PortfolioWeight, error) {
	p, err := s.portfolios.GetByName(portfolioName)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("portfolio %q not found for weight upsert", portfolioName)
	}

	asset, err := s.assets.GetByName(assetName)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, fmt.Errorf("asset %q not found for weight upsert", assetName)
	}

	return s.weights.Upsert(domain.PortfolioWeight{
		PortfolioID:   p.ID,
		PortfolioName: p.Name,
		AssetID:       asset.ID,
		AssetName:     asset.Name,
		InitialWeight: weight,
	})
}

// UpsertHolding creates or updates the holding keyed by (portfolio, asset,
// date). IDs are accepted directly because the derivation engine already
// holds resolved entities.
func (s *Service) UpsertHolding(portfolioID, assetID int64, date time.Time, quantity decimal.Decimal) (*domain.PortfolioHolding, error) {
	return s.holdings.Upsert(domain.PortfolioHolding{
		PortfolioID: portfolioID,
		AssetID:     assetID,
		Date:        date,
		Quantity:    quantity,
	})
}

// ClearAll deletes every record, children before parents, so the clear does
// not lean on cascade behavior: prices, weights, holdings, transactions,
// then portfolios, then assets.
func (s *Service) ClearAll() error {
	if err := s.prices.DeleteAll(); err != nil {
		return err
	}
	if err := s.weights.DeleteAll(); err != nil {
		return err
	}
	if err := s.holdings.DeleteAll(); err != nil {
		return err
	}
	if err := s.transactions.DeleteAll(); err != nil {
		return err
	}
	if err := s.portfolios.DeleteAll(); err != nil {
		return err
	}
	if err := s.assets.DeleteAll(); err != nil {
		return err
	}
	s.log.Info().Msg("Existing data cleared")
	return nil
}

// Counts summarizes the number of persisted records per entity type.
type Counts struct {
	Assets     int `json:"assets"`
	Portfolios int `json:"portfolios"`
	Weights    int `json:"weights"`
	Prices     int `json:"prices"`
	Holdings   int `json:"holdings"`
}

// Counts reports persisted record counts for the run summary.
func (s *Service) Counts() (Counts, error) {
	var c Counts
	var err error

	if c.Assets, err = s.assets.Count(); err != nil {
		return c, err
	}
	if c.Portfolios, err = s.portfolios.Count(); err != nil {
		return c, err
	}
	if c.Weights, err = s.weights.Count(); err != nil {
		return c, err
	}
	if c.Prices, err = s.prices.Count(); err != nil {
		return c, err
	}
	if c.Holdings, err = s.holdings.Count(); err != nil {
		return c, err
	}

	return c, nil
}
