package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jopa/salestracker/internal/auth"
	"github.com/jopa/salestracker/internal/observability"
	"github.com/jopa/salestracker/internal/repository/postgres"
	"github.com/jopa/salestracker/internal/scheduler"
	"github.com/jopa/salestracker/internal/server/handlers"
	"github.com/jopa/salestracker/internal/service/accounts"
	"github.com/jopa/salestracker/internal/service/ledger"
	"github.com/jopa/salestracker/internal/service/pipeline"
	"github.com/jopa/salestracker/internal/service/reporting"
	"github.com/jopa/salestracker/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRunner struct {
	result pipeline.Result
	err    error
}

func (r stubRunner) Trigger(context.Context) (pipeline.Result, error) { return r.result, r.err }

type api struct {
	t        *testing.T
	engine   *gin.Engine
	registry *prometheus.Registry
}

func newAPI(t *testing.T, runner handlers.DailyRunner) *api {
	t.Helper()

	store := postgres.NewStore(testutil.NewDB(t))
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	accountSvc := accounts.NewService(store, tokens, nil)
	ledgerSvc := ledger.NewService(store, nil)
	registry := prometheus.NewRegistry()

	ctx := context.Background()
	_, err := accountSvc.Register(ctx, accounts.RegisterInput{Name: "Admin", Email: "admin@example.com", Password: "password123", Role: "ADMIN"})
	require.NoError(t, err)
	_, err = accountSvc.Register(ctx, accounts.RegisterInput{Name: "Keeper", Email: "keeper@example.com", Password: "password123"})
	require.NoError(t, err)

	engine := New(Dependencies{
		Tokens:      tokens,
		Users:       store,
		UserHandler: handlers.NewUserHandler(accountSvc, nil),
		Products:    handlers.NewProductHandler(ledgerSvc, nil),
		Sales:       handlers.NewSaleHandler(ledgerSvc, nil),
		Reports:     handlers.NewReportHandler(store, reporting.NewGenerator(store, time.UTC), runner, nil, time.UTC, nil),
		Dashboard:   handlers.NewDashboardHandler(store, time.UTC, nil),
		Metrics:     observability.NewMetrics(registry),
		Gatherer:    registry,
		CORSOrigins: []string{"*"},
	}, nil)

	return &api{t: t, engine: engine, registry: registry}
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func (a *api) login(path, email string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, path, "", gin.H{"email": email, "password": "password123"})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())

	var session struct {
		Token string `json:"token"`
	}
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &session))
	return session.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestSalesFlow(t *testing.T) {
	a := newAPI(t, stubRunner{})
	admin := a.login("/v1/api/auth/admin-login", "admin@example.com")
	keeper := a.login("/v1/api/auth/record-keepers/login", "keeper@example.com")

	rec := a.do(http.MethodPost, "/v1/api/products/create-product", keeper, gin.H{"name": "Beans", "code": "P001", "price": 12.5, "quantity": 10})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/v1/api/products/create-product", admin, gin.H{"name": "Beans", "code": "P001", "price": 12.5, "quantity": 10})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decode[struct {
		ID uint `json:"id"`
	}](t, rec)

	rec = a.do(http.MethodPost, "/v1/api/sales/create-sale", keeper, gin.H{"productId": product.ID, "quantity": 4})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decode[struct {
		ID     uint    `json:"id"`
		Total  float64 `json:"total"`
		Profit float64 `json:"profit"`
	}](t, rec)
	assert.InDelta(t, 50.0, sale.Total, 1e-9)
	assert.InDelta(t, 10.0, sale.Profit, 1e-9)

	rec = a.do(http.MethodPost, "/v1/api/sales/create-sale", keeper, gin.H{"productId": product.ID, "quantity": 40})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/v1/api/sales/get-sales", keeper, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = a.do(http.MethodGet, "/v1/api/products/get-product/999", keeper, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodGet, "/v1/api/admin-dashboard", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dashboard := decode[handlers.Dashboard](t, rec)
	assert.InDelta(t, 50.0, dashboard.TotalSales, 1e-9)
	assert.Equal(t, int64(1), dashboard.SalesCount)
	assert.Equal(t, int64(1), dashboard.ProductCount)
	assert.Equal(t, int64(2), dashboard.UserCount)
	assert.Len(t, dashboard.RecentSales, 1)
	require.Len(t, dashboard.SalesTrend, 7)
	assert.InDelta(t, 50.0, dashboard.SalesTrend[6].Total, 1e-9)

	rec = a.do(http.MethodPost, "/v1/api/reports/generate", admin, gin.H{"reportType": "custom"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	report := decode[struct {
		ID         uint    `json:"id"`
		Title      string  `json:"title"`
		TotalSales float64 `json:"total_sales"`
	}](t, rec)
	assert.True(t, strings.HasPrefix(report.Title, "Custom Report - "))
	assert.InDelta(t, 50.0, report.TotalSales, 1e-9)

	rec = a.do(http.MethodGet, "/v1/api/reports/"+itoa(report.ID), keeper, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[struct {
		Sales []map[string]any `json:"sales"`
	}](t, rec)
	assert.Len(t, detail.Sales, 1)

	rec = a.do(http.MethodDelete, "/v1/api/reports/"+itoa(report.ID), admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodGet, "/v1/api/reports/"+itoa(report.ID), admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateReport_NoSales(t *testing.T) {
	a := newAPI(t, stubRunner{})
	admin := a.login("/v1/api/auth/admin-login", "admin@example.com")

	rec := a.do(http.MethodPost, "/v1/api/reports/generate", admin, gin.H{"reportType": "WEEKLY", "startDate": "2020-01-01", "endDate": "2020-01-07"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no sales found for this period")

	rec = a.do(http.MethodPost, "/v1/api/reports/generate", admin, gin.H{"reportType": "YEARLY"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/v1/api/reports/generate", admin, gin.H{"reportType": "DAILY", "startDate": "2020-01-07", "endDate": "2020-01-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginAndAuthErrors(t *testing.T) {
	a := newAPI(t, stubRunner{})

	rec := a.do(http.MethodPost, "/v1/api/auth/admin-login", "", gin.H{"email": "keeper@example.com", "password": "password123"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/v1/api/auth/admin-login", "", gin.H{"email": "admin@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodGet, "/v1/api/products/get-products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodGet, "/v1/api/products/get-products", "forged", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUserManagement(t *testing.T) {
	a := newAPI(t, stubRunner{})
	admin := a.login("/v1/api/auth/admin-login", "admin@example.com")
	keeper := a.login("/v1/api/auth/record-keepers/login", "keeper@example.com")

	rec := a.do(http.MethodPost, "/v1/api/users/register-user", admin, gin.H{"name": "New", "email": "new@example.com", "password": "password123"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		ID   uint   `json:"id"`
		Role string `json:"role"`
	}](t, rec)
	assert.Equal(t, "RECORD_KEEPER", created.Role)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = a.do(http.MethodPost, "/v1/api/users/register-user", admin, gin.H{"name": "Dup", "email": "new@example.com", "password": "password123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/v1/api/users/register-user", keeper, gin.H{"name": "X", "email": "x@example.com", "password": "password123"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodGet, "/v1/api/users/"+itoa(created.ID), keeper, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodGet, "/v1/api/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 3)

	rec = a.do(http.MethodDelete, "/v1/api/users/"+itoa(created.ID), admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunDaily(t *testing.T) {
	t.Run("busy", func(t *testing.T) {
		a := newAPI(t, stubRunner{err: scheduler.ErrBusy})
		admin := a.login("/v1/api/auth/admin-login", "admin@example.com")

		rec := a.do(http.MethodPost, "/v1/api/reports/daily/run", admin, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("render failure reports dangling id", func(t *testing.T) {
		a := newAPI(t, stubRunner{err: &pipeline.RenderError{ReportID: 42, Err: context.DeadlineExceeded}})
		admin := a.login("/v1/api/auth/admin-login", "admin@example.com")

		rec := a.do(http.MethodPost, "/v1/api/reports/daily/run", admin, nil)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode[map[string]any](t, rec)
		assert.Equal(t, "render_error", body["outcome"])
		assert.EqualValues(t, 42, body["report_id"])
	})

	t.Run("success", func(t *testing.T) {
		a := newAPI(t, stubRunner{result: pipeline.Result{ReportID: 7, Title: "Daily Report - 2025-03-10", PDFBytes: 1024}})
		admin := a.login("/v1/api/auth/admin-login", "admin@example.com")
		keeper := a.login("/v1/api/auth/record-keepers/login", "keeper@example.com")

		rec := a.do(http.MethodPost, "/v1/api/reports/daily/run", keeper, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = a.do(http.MethodPost, "/v1/api/reports/daily/run", admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 7, decode[map[string]any](t, rec)["report_id"])
	})
}

func TestHealthAndMetrics(t *testing.T) {
	a := newAPI(t, stubRunner{})

	rec := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "salestracker_http_requests_total")

	rec = a.do(http.MethodGet, "/v1/api/reports/1/snapshot", a.login("/v1/api/auth/admin-login", "admin@example.com"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
