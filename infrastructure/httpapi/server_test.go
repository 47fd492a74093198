package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-scrutin/infrastructure/middleware"
	"github.com/ahrav/go-scrutin/internal/application"
	"github.com/ahrav/go-scrutin/internal/domain"
	"github.com/ahrav/go-scrutin/internal/ports"
)

const (
	testBaseURL = "https://scrutin.example"
	workedToken = "A~P~E2B2P3I2R1~2.17_B~B~E0B10P0I0R0~3.00"
)

// workedCSV gives choice A the mentions E:2 B:2 P:3 I:2 R:1 and choice B
// Bien on every ballot.
const workedCSV = "A,B\n" +
	"Excellent,Bien\nExcellent,Bien\nBien,Bien\nBien,Bien\nPassable,Bien\n" +
	"Passable,Bien\nPassable,Bien\nInsuffisant,Bien\nInsuffisant,Bien\nÀ rejeter,Bien\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg Config, opts ...Option) http.Handler {
	t.Helper()
	builder, err := application.NewPipelineBuilder(application.NewDefaultUnitRegistry(), nil)
	require.NoError(t, err)
	svc, err := application.NewService(context.Background(), application.DefaultConfig().Scrutin, builder,
		application.WithLogger(discardLogger()))
	require.NoError(t, err)

	if cfg.BaseURL == "" {
		cfg.BaseURL = testBaseURL
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return New(svc, cfg, append([]Option{WithLogger(discardLogger())}, opts...)...).Handler()
}

func uploadRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp struct {
		Success bool         `json:"success"`
		Result  string       `json:"result"`
		Token   string       `json:"token"`
		Error   string       `json:"error"`
		Detail  *ErrorDetail `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return Response{Success: resp.Success, Result: resp.Result, Token: resp.Token, Error: resp.Error, Detail: resp.Detail}
}

func TestUpload(t *testing.T) {
	h := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "scrutin.CSV", workedCSV, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, workedToken, resp.Token)
	assert.Equal(t, testBaseURL+"/result?data="+url.QueryEscape(workedToken), resp.Result)
	assert.Contains(t, rec.Body.String(), `"winner":"B"`)
}

func TestUpload_Rejections(t *testing.T) {
	h := newTestServer(t, Config{MaxUploadBytes: 1024})

	tests := []struct {
		name     string
		req      *http.Request
		status   int
		contains string
	}{
		{name: "missing file", req: uploadRequest(t, "", "", nil), status: http.StatusBadRequest, contains: "Aucun fichier fourni"},
		{name: "not csv", req: uploadRequest(t, "votes.txt", workedCSV, nil), status: http.StatusUnsupportedMediaType, contains: "format CSV (.csv)"},
		{name: "too large", req: uploadRequest(t, "votes.csv", strings.Repeat("A,B\n", 600), nil), status: http.StatusRequestEntityTooLarge, contains: "Taille maximum autorisée : 1KB"},
		{
			name:     "body over the multipart allowance",
			req:      uploadRequest(t, "votes.csv", strings.Repeat("A,B\n", 20<<10), nil),
			status:   http.StatusRequestEntityTooLarge,
			contains: "Taille maximum autorisée : 1KB",
		},
		{name: "unknown scale", req: uploadRequest(t, "votes.csv", workedCSV, map[string]string{"scale": "7"}), status: http.StatusBadRequest, contains: "Échelle inconnue"},
		{name: "scale mismatch", req: uploadRequest(t, "votes.csv", workedCSV, map[string]string{"scale": "6"}), status: http.StatusBadRequest, contains: "scale mismatch"},
		{name: "broken quoting", req: uploadRequest(t, "votes.csv", "A,B\n\"Bien,Bien\n", nil), status: http.StatusBadRequest, contains: "Erreur de format CSV"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Error, tt.contains)
		})
	}
}

func TestUpload_FormatErrorDetail(t *testing.T) {
	h := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "votes.csv", "A,B\nBien,Bien\nBien\n", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, strings.HasPrefix(resp.Error, "Erreur de format CSV : "), resp.Error)
	require.NotNil(t, resp.Detail)
	assert.Equal(t, "row length mismatch", resp.Detail.Reason)
	assert.Equal(t, 3, resp.Detail.Row)
	assert.Equal(t, 2, resp.Detail.Expected)
	assert.Equal(t, 1, resp.Detail.Actual)
}

func TestUpload_EmptyBallotRejected(t *testing.T) {
	h := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "votes.csv", workedCSV+",\n", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Detail)
	assert.Equal(t, "invalid mention", resp.Detail.Reason)
	assert.Equal(t, 12, resp.Detail.Row)
}

func TestUpload_SixMentionScale(t *testing.T) {
	h := newTestServer(t, Config{})

	csv := "Pain & beurre\nTrès bien\nTrès bien\nBien\nAssez bien\nPassable\nInsuffisant\nÀ rejeter\n"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "votes.csv", csv, map[string]string{"scale": "6"}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeResponse(t, rec)
	assert.True(t, strings.HasPrefix(resp.Token, "Pain+%26+beurre~AB~"), resp.Token)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "votes.csv", "Pain & beurre\nTrès bien\nAssez bien\nBien\n", map[string]string{"scale": "6"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeResponse(t, rec).Error, "scale mismatch")
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	h := newTestServer(t, Config{})

	tests := map[string]string{
		http.MethodGet:    "via une requête POST",
		http.MethodPut:    "Méthode PUT non supportée",
		http.MethodDelete: "Méthode DELETE non supportée",
	}
	for method, contains := range tests {
		t.Run(method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(method, "/api", nil))

			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Error, contains)
		})
	}
}

func TestResult(t *testing.T) {
	h := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/result?data="+url.QueryEscape(workedToken)+"&c=20", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view struct {
		Threshold     string   `json:"threshold"`
		Winners       []string `json:"winners"`
		Summary       string   `json:"summary"`
		ShareURL      string   `json:"share_url"`
		Participation struct {
			Voters int     `json:"voters"`
			Rate   float64 `json:"rate"`
		} `json:"participation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "top_1", view.Threshold)
	assert.Equal(t, []string{"B"}, view.Winners)
	assert.True(t, strings.HasPrefix(view.Summary, `Le scrutin a validé l'option "B"`), view.Summary)
	assert.Equal(t, 10, view.Participation.Voters)
	assert.Equal(t, 50.0, view.Participation.Rate)
}

func TestResult_Errors(t *testing.T) {
	h := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/result", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeResponse(t, rec).Error, "data")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/result?data="+url.QueryEscape("A~Q~E1~1.00"), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Detail)
	require.NotNil(t, resp.Detail.Segment)
	assert.Equal(t, 0, *resp.Detail.Segment)
}

func TestEmbed(t *testing.T) {
	h := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/embed?s=2&data="+url.QueryEscape(workedToken), nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `<iframe title="Résultat du scrutin"`)
	assert.Contains(t, body, testBaseURL+"/result?data="+workedToken+"&s=2&d=embed")
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := middleware.NewPrometheusMetrics(reg)
	require.NoError(t, err)
	h := newTestServer(t, Config{},
		WithMetrics(metrics),
		WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scrutin_operations_total{operation="http_requests",status="200",unit="GET /health"} 1`)
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, Config{RateLimit: 0.001, Burst: 1})

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/result", nil))
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/result", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))

	other := httptest.NewRequest(http.MethodGet, "/result", nil)
	other.Header.Set("X-Forwarded-For", "203.0.113.9")
	third := httptest.NewRecorder()
	h.ServeHTTP(third, other)
	assert.Equal(t, http.StatusBadRequest, third.Code, "limits are per client")

	health := httptest.NewRecorder()
	h.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestClientLimiter_Check(t *testing.T) {
	l := newClientLimiter(0.001, 1)

	require.NoError(t, l.check("198.51.100.1"))
	err := l.check("198.51.100.1")
	assert.ErrorIs(t, err, ports.ErrRateLimited)
	assert.ErrorContains(t, err, "198.51.100.1")
	assert.NoError(t, l.check("198.51.100.2"))
}

func TestServer_WriteError(t *testing.T) {
	s := New(nil, Config{MaxUploadBytes: 2 << 20}, WithLogger(discardLogger()))

	tests := []struct {
		name     string
		err      error
		status   int
		contains string
	}{
		{name: "rate limited", err: fmt.Errorf("client x: %w", ports.ErrRateLimited), status: http.StatusTooManyRequests, contains: "Trop de requêtes"},
		{name: "too large", err: fmt.Errorf("file: %w", ports.ErrPayloadTooLarge), status: http.StatusRequestEntityTooLarge, contains: "2MB"},
		{name: "unsupported media", err: fmt.Errorf("file: %w", ports.ErrUnsupportedMedia), status: http.StatusUnsupportedMediaType, contains: "format CSV"},
		{name: "format", err: domain.NewFormatError(domain.ErrNoBallots), status: http.StatusBadRequest, contains: "Erreur de format CSV"},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, contains: "Erreur interne : boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.writeError(rec, tt.err)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, decodeResponse(t, rec).Error, tt.contains)
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"}, remote: "10.0.0.2:1234", want: "198.51.100.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.2"}, remote: "10.0.0.2:1234", want: "198.51.100.2"},
		{name: "remote addr", remote: "192.0.2.7:5555", want: "192.0.2.7"},
		{name: "remote without port", remote: "192.0.2.8", want: "192.0.2.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}

func TestUploadKey(t *testing.T) {
	data := []byte(workedCSV)
	assert.Equal(t, uploadKey(5, data), uploadKey(5, data))
	assert.NotEqual(t, uploadKey(5, data), uploadKey(6, data))
	assert.NotEqual(t, uploadKey(5, data), uploadKey(5, []byte("A\nBien\n")))
}
