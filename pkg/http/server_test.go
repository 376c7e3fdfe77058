package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageRequest struct {
	Limit int `query:"limit" default:"50" validate:"gte=1,lte=500"`
}

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/items", func(c echo.Context) error {
		req := &pageRequest{}
		if verr := ReadAndValidateRequest(c, req); verr != nil {
			return BadRequestResponse(c, verr)
		}
		return SuccessResponse(c, req.Limit)
	})
	e.GET("/panic", func(echo.Context) error { panic("boom") })
	e.GET("/missing", func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundErrorf("no item %d", 7))
	})
}

func newTestServer() *Server {
	return NewServer(nil, []Handler{routes{}}, WithMetricsRegistry(prometheus.NewRegistry()), WithCORS(false))
}

func get(s *Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestReadAndValidateRequest(t *testing.T) {
	s := newTestServer()

	rec := get(s, "/items")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"message":"OK","data":50}`, rec.Body.String())

	rec = get(s, "/items?limit=900")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":400,"message":"Bad Request","data":[{"code":"ERR_LTE","field":"Limit","message":"Limit must be less than or equal to 500","params":{"max":"500"}}]}`, rec.Body.String())
}

func TestAppErrorAndRecovery(t *testing.T) {
	s := newTestServer()

	rec := get(s, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no item 7")

	rec = get(s, "/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer()
	get(s, "/items")

	rec := get(s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `finfusion_http_requests_total{method="GET",route="/items",status="200"} 1`), rec.Body.String())
}

func TestServerStartStop(t *testing.T) {
	s := NewServer(nil, []Handler{routes{}}, WithHost("127.0.0.1"), WithPort(0), WithMetricsRegistry(prometheus.NewRegistry()))
	require.NoError(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/items")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
