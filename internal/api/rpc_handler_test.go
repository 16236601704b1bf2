// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Thermoquad/mhistat/internal/metrics"
	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

func newEngine(h *RPCHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rr, req)
	return rr
}

func TestGetParams(t *testing.T) {
	driver := mhiac.New()
	r := newEngine(NewRPCHandler(driver, true, nil, nil, zap.NewNop()))

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rr := do(r, method, PathGetParams, "")
		require.Equal(t, http.StatusOK, rr.Code, method)

		var p mhiac.Params
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
		assert.Equal(t, mhiac.PowerOff, p.Power)
		assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
	}
}

func TestSetParams(t *testing.T) {
	driver := mhiac.New()
	m := metrics.NewAppMetrics(metrics.NewRegistry())
	r := newEngine(NewRPCHandler(driver, true, nil, m, zap.NewNop()))

	rr := do(r, http.MethodPost, PathSetParams, `{"power":"on","mode":"cool","setpoint":22.5,"fan":"turbo"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var res mhiac.SetResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, map[string]bool{"power": true, "mode": true, "setpoint": true, "fan": true}, res.Results)

	down := driver.Downlink()
	assert.Equal(t, mhiac.PowerOn, mhiac.DecodePower(down))
	assert.Equal(t, 22.5, mhiac.DecodeSetpoint(down))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SetParamsTotal.WithLabelValues("fan", "ok")))
}

func TestSetParamsPartialFailure(t *testing.T) {
	r := newEngine(NewRPCHandler(mhiac.New(), true, nil, nil, nil))

	rr := do(r, http.MethodPost, PathSetParams, `{"setpoint":40,"vane_horiz":2}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var res mhiac.SetResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.False(t, res.Success)
	assert.False(t, res.Results["setpoint"])
	assert.True(t, res.Results["vane_horiz"])
}

func TestSetParamsBadBody(t *testing.T) {
	r := newEngine(NewRPCHandler(mhiac.New(), true, nil, nil, nil))

	for _, body := range []string{"", "{", `{"mode":"blizzard"}`, `{"setpoint":"warm"}`} {
		rr := do(r, http.MethodPost, PathSetParams, body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "body %q", body)
	}
}

func TestRPCDisabled(t *testing.T) {
	r := newEngine(NewRPCHandler(mhiac.New(), false, nil, nil, nil))

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, PathGetParams, "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, PathSetParams, `{"power":1}`).Code)
}

func TestSetParamsRateLimited(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	r := newEngine(NewRPCHandler(mhiac.New(), true, limiter, nil, nil))

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, PathSetParams, `{"power":1}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, PathSetParams, `{"power":1}`).Code)
	assert.EqualValues(t, 1, limiter.AllowedCount())
	assert.EqualValues(t, 1, limiter.RejectedCount())
}

func TestRequestIDEchoed(t *testing.T) {
	r := newEngine(NewRPCHandler(mhiac.New(), true, nil, nil, nil))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, PathGetParams, nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	r.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
}

func TestNilRateLimiterAllows(t *testing.T) {
	var l *RateLimiter
	assert.Nil(t, NewRateLimiter(0, 10))
	assert.True(t, l.Allow())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	assert.NoError(t, l.Wait(ctx))
	assert.Zero(t, l.RejectedCount())
}
