package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qgenlab/qgen/internal/metrics"
	"github.com/qgenlab/qgen/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	s := New(":0", nil, nil, 0, discardLogger())
	rec := do(t, s.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestRecover(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantStatus int
		wantKind   string
		repaired   bool
	}{
		{name: "strict", raw: `noise {"a": 1} noise`, wantStatus: http.StatusOK},
		{name: "repaired", raw: "```json\n{\"a\": 1,}\n```", wantStatus: http.StatusOK, repaired: true},
		{name: "no json", raw: "nothing to see", wantStatus: http.StatusUnprocessableEntity, wantKind: "extraction_failed"},
		{name: "broken", raw: `{"a": 1 "b" ::: }`, wantStatus: http.StatusUnprocessableEntity, wantKind: "recovery_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(":0", nil, metrics.New(), 0, discardLogger())
			body, _ := json.Marshal(recoverRequest{Raw: tt.raw})
			rec := do(t, s.Handler(), http.MethodPost, "/v1/recover", string(body))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			out := decodeBody(t, rec)
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, out["kind"])
				assert.NotEmpty(t, out["message"])
				return
			}
			assert.Equal(t, map[string]any{"a": 1.0}, out["value"])
			assert.Equal(t, tt.repaired, out["repaired"])
		})
	}
}

func TestRecoverFailureCarriesOffset(t *testing.T) {
	s := New(":0", nil, nil, 0, discardLogger())
	rec := do(t, s.Handler(), http.MethodPost, "/v1/recover", `{"raw": "{\"a\": 1 \"b\" ::: }"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	out := decodeBody(t, rec)
	assert.Contains(t, out, "offset")
	assert.NotEmpty(t, out["window"])
}

func TestRecoverBadRequest(t *testing.T) {
	s := New(":0", nil, nil, 0, discardLogger())
	rec := do(t, s.Handler(), http.MethodPost, "/v1/recover", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecoverObservesMetrics(t *testing.T) {
	m := metrics.New()
	s := New(":0", nil, m, 0, discardLogger())
	do(t, s.Handler(), http.MethodPost, "/v1/recover", `{"raw": "{\"a\": 1}"}`)
	do(t, s.Handler(), http.MethodPost, "/v1/recover", `{"raw": "plain text"}`)

	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `qgen_json_recovery_total{outcome="strict"} 1`)
	assert.Contains(t, rec.Body.String(), `qgen_json_recovery_total{outcome="no_json"} 1`)
	assert.Equal(t, 2, mustGatherCount(t, m, "qgen_json_recovery_total"))
}

func TestGenerate(t *testing.T) {
	var gotMode string
	var gotParams model.GenerationParams
	gen := func(_ context.Context, mode string, p model.GenerationParams) (any, model.RunSummary, error) {
		gotMode, gotParams = mode, p
		return model.OutputFile{Output: model.QAGroups{}}, model.RunSummary{Mode: mode, Generated: 2}, nil
	}
	s := New(":0", gen, nil, 0, discardLogger())

	body := `{"mode": "single", "params": {"subject": "Biology", "bloom_level": "Remembering, Applying", "num_questions": "2"}}`
	rec := do(t, s.Handler(), http.MethodPost, "/v1/generate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "single", gotMode)
	assert.Equal(t, "Biology", gotParams.Subject)
	assert.Equal(t, []string{"Remembering", "Applying"}, gotParams.BloomLevels)
	assert.Equal(t, 2, gotParams.NumQuestions)

	out := decodeBody(t, rec)
	assert.Contains(t, out, "result")
	assert.Contains(t, out, "summary")
}

func TestGenerateDefaultsToChain(t *testing.T) {
	var gotMode string
	gen := func(_ context.Context, mode string, _ model.GenerationParams) (any, model.RunSummary, error) {
		gotMode = mode
		return nil, model.RunSummary{}, nil
	}
	s := New(":0", gen, nil, 0, discardLogger())
	rec := do(t, s.Handler(), http.MethodPost, "/v1/generate", `{"params": {"subject": "Physics"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "chain", gotMode)
}

func TestGenerateErrors(t *testing.T) {
	failing := func(context.Context, string, model.GenerationParams) (any, model.RunSummary, error) {
		return nil, model.RunSummary{}, errors.New("provider down")
	}
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKind   string
	}{
		{name: "bad mode", body: `{"mode": "essay", "params": {"subject": "x"}}`, wantStatus: http.StatusBadRequest, wantKind: "bad_request"},
		{name: "missing params", body: `{"mode": "chain"}`, wantStatus: http.StatusBadRequest, wantKind: "bad_request"},
		{name: "bad params", body: `{"mode": "chain", "params": {"subject": "x", "num_questions": "many"}}`, wantStatus: http.StatusBadRequest, wantKind: "bad_params"},
		{name: "generation error", body: `{"mode": "chain", "params": {"subject": "x"}}`, wantStatus: http.StatusBadGateway, wantKind: "generation_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(":0", failing, nil, 0, discardLogger())
			rec := do(t, s.Handler(), http.MethodPost, "/v1/generate", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantKind, decodeBody(t, rec)["kind"])
		})
	}
}

func TestGenerateRouteAbsentWithoutFunc(t *testing.T) {
	s := New(":0", nil, nil, 0, discardLogger())
	rec := do(t, s.Handler(), http.MethodPost, "/v1/generate", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func mustGatherCount(t *testing.T, m *metrics.Metrics, name string) int {
	t.Helper()
	n, err := testutil.GatherAndCount(m.Registry(), name)
	require.NoError(t, err)
	return n
}
