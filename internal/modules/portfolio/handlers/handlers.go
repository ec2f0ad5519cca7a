// Package handlers provides read-only HTTP handlers over the entity store,
// plus the derivation trigger.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/cartera/internal/domain"
	"github.com/aristath/cartera/internal/modules/holdings"
	"github.com/aristath/cartera/internal/modules/portfolio"
)

// Handler handles portfolio data HTTP requests
type Handler struct {
	service *portfolio.Service
	engine  *holdings.Engine
	log     zerolog.Logger
}

// NewHandler creates a new portfolio data handler
func NewHandler(service *portfolio.Service, engine *holdings.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		engine:  engine,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// assetResponse and friends render decimals as strings so values stay exact
// on the wire.
type assetResponse struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol,omitempty"`
}

type portfolioResponse struct {
	Name         string `json:"name"`
	InitialValue string `json:"initial_value"`
	InitialDate  string `json:"initial_date"`
}

type weightResponse struct {
	Portfolio     string `json:"portfolio"`
	Asset         string `json:"asset"`
	InitialWeight string `json:"initial_weight"`
}

type priceResponse struct {
	Asset string `json:"asset"`
	Date  string `json:"date"`
	Price string `json:"price"`
}

type holdingResponse struct {
	Asset    string `json:"asset"`
	Date     string `json:"date"`
	Quantity string `json:"quantity"`
}

// HandleListAssets handles GET /api/v1/assets
func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.service.Assets().GetAll()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list assets: "+err.Error())
		return
	}

	out := make([]assetResponse, 0, len(assets))
	for _, a := range assets {
		out = append(out, assetResponse{Name: a.Name, Symbol: a.Symbol})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleListPortfolios handles GET /api/v1/portfolios
func (h *Handler) HandleListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.service.Portfolios().GetAll()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list portfolios: "+err.Error())
		return
	}

	out := make([]portfolioResponse, 0, len(portfolios))
	for _, p := range portfolios {
		out = append(out, portfolioResponse{
			Name:         p.Name,
			InitialValue: p.InitialValue.String(),
			InitialDate:  p.InitialDate.Format(domain.DateLayout),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleGetWeights handles GET /api/v1/portfolios/{name}/weights
func (h *Handler) HandleGetWeights(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupPortfolio(w, r)
	if !ok {
		return
	}

	weights, err := h.service.Weights().GetByPortfolio(p.ID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list weights: "+err.Error())
		return
	}

	out := make([]weightResponse, 0, len(weights))
	for _, wt := range weights {
		out = append(out, weightResponse{
			Portfolio:     wt.PortfolioName,
			Asset:         wt.AssetName,
			InitialWeight: wt.InitialWeight.String(),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleGetHoldings handles GET /api/v1/portfolios/{name}/holdings
func (h *Handler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupPortfolio(w, r)
	if !ok {
		return
	}

	items, err := h.service.Holdings().GetByPortfolio(p.ID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list holdings: "+err.Error())
		return
	}

	out := make([]holdingResponse, 0, len(items))
	for _, item := range items {
		out = append(out, holdingResponse{
			Asset:    item.AssetName,
			Date:     item.Date.Format(domain.DateLayout),
			Quantity: item.Quantity.String(),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleGetPrices handles GET /api/v1/assets/{name}/prices
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	asset, err := h.service.Assets().GetByName(name)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to look up asset: "+err.Error())
		return
	}
	if asset == nil {
		h.writeError(w, http.StatusNotFound, "Asset not found: "+name)
		return
	}

	prices, err := h.service.Prices().GetByAsset(asset.ID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list prices: "+err.Error())
		return
	}

	out := make([]priceResponse, 0, len(prices))
	for _, p := range prices {
		out = append(out, priceResponse{
			Asset: p.AssetName,
			Date:  p.Date.Format(domain.DateLayout),
			Price: p.Price.String(),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleDerive handles POST /api/v1/portfolios/{name}/derive
func (h *Handler) HandleDerive(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupPortfolio(w, r)
	if !ok {
		return
	}

	derived, err := h.engine.DeriveInitialHoldings(p.Name)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, "Derivation failed: "+err.Error())
		return
	}

	out := make(map[string]holdingResponse, len(derived))
	for name, item := range derived {
		out[name] = holdingResponse{
			Asset:    item.AssetName,
			Date:     item.Date.Format(domain.DateLayout),
			Quantity: item.Quantity.String(),
		}
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) lookupPortfolio(w http.ResponseWriter, r *http.Request) (*domain.Portfolio, bool) {
	name := chi.URLParam(r, "name")
	p, err := h.service.Portfolios().GetByName(name)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to look up portfolio: "+err.Error())
		return nil, false
	}
	if p == nil {
		h.writeError(w, http.StatusNotFound, "Portfolio not found: "+name)
		return nil, false
	}
	return p, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
