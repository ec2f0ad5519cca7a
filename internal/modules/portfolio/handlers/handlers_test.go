package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/cartera/internal/database"
	"github.com/aristath/cartera/internal/modules/holdings"
	"github.com/aristath/cartera/internal/modules/portfolio"
	"github.com/aristath/cartera/pkg/logger"
)

var initialDate = time.Date(2022, 2, 15, 0, 0, 0, 0, time.UTC)

func setupRouter(t *testing.T) (*portfolio.Service, chi.Router) {
	t.Helper()

	db, err := database.New(database.Config{Path: ":memory:", Name: "test"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	service := portfolio.NewService(db, logger.Discard())
	engine := holdings.NewEngine(service, logger.Discard())

	router := chi.NewRouter()
	NewHandler(service, engine, logger.Discard()).RegisterRoutes(router)
	return service, router
}

func seedData(t *testing.T, s *portfolio.Service) {
	t.Helper()

	_, err := s.UpsertAsset("EEUU", "")
	require.NoError(t, err)
	_, err = s.UpsertPortfolio("Portfolio 1", decimal.RequireFromString("1000000000.00"), initialDate)
	require.NoError(t, err)
	_, err = s.UpsertWeight("Portfolio 1", "EEUU", decimal.RequireFromString("0.28"))
	require.NoError(t, err)
	_, err = s.UpsertPrice("EEUU", initialDate, decimal.RequireFromString("100.00"))
	require.NoError(t, err)
}

func doRequest(t *testing.T, router chi.Router, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestListAssets(t *testing.T) {
	service, router := setupRouter(t)
	seedData(t, service)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/assets")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var assets []map[string]string
	decodeBody(t, rec, &assets)
	require.Len(t, assets, 1)
	assert.Equal(t, "EEUU", assets[0]["name"])
}

func TestListPortfolios_DecimalsAsStrings(t *testing.T) {
	service, router := setupRouter(t)
	seedData(t, service)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/portfolios")
	require.Equal(t, http.StatusOK, rec.Code)

	var portfolios []map[string]string
	decodeBody(t, rec, &portfolios)
	require.Len(t, portfolios, 1)
	assert.Equal(t, "Portfolio 1", portfolios[0]["name"])
	assert.Equal(t, "1000000000", portfolios[0]["initial_value"])
	assert.Equal(t, "2022-02-15", portfolios[0]["initial_date"])
}

func TestGetWeights(t *testing.T) {
	service, router := setupRouter(t)
	seedData(t, service)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/portfolios/Portfolio%201/weights")
	require.Equal(t, http.StatusOK, rec.Code)

	var weights []map[string]string
	decodeBody(t, rec, &weights)
	require.Len(t, weights, 1)
	assert.Equal(t, "EEUU", weights[0]["asset"])
	assert.Equal(t, "0.28", weights[0]["initial_weight"])
}

func TestGetPrices_UnknownAssetIs404(t *testing.T) {
	_, router := setupRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/assets/Nadie/prices")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Contains(t, body["error"], "Nadie")
}

func TestUnknownPortfolioIs404(t *testing.T) {
	_, router := setupRouter(t)

	for _, path := range []string{
		"/api/v1/portfolios/Nadie/weights",
		"/api/v1/portfolios/Nadie/holdings",
	} {
		rec := doRequest(t, router, http.MethodGet, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestDerive_ComputesAndExposesHoldings(t *testing.T) {
	service, router := setupRouter(t)
	seedData(t, service)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/portfolios/Portfolio%201/derive")
	require.Equal(t, http.StatusOK, rec.Code)

	var derived map[string]map[string]string
	decodeBody(t, rec, &derived)
	require.Contains(t, derived, "EEUU")
	assert.Equal(t, "2800000", derived["EEUU"]["quantity"])
	assert.Equal(t, "2022-02-15", derived["EEUU"]["date"])

	// Derived holdings are readable afterwards.
	rec = doRequest(t, router, http.MethodGet, "/api/v1/portfolios/Portfolio%201/holdings")
	require.Equal(t, http.StatusOK, rec.Code)

	var items []map[string]string
	decodeBody(t, rec, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "EEUU", items[0]["asset"])
}

func TestDerive_StructuralFailureIs422(t *testing.T) {
	service, router := setupRouter(t)

	_, err := service.UpsertPortfolio("Portfolio 1", decimal.Zero, initialDate)
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/portfolios/Portfolio%201/derive")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
