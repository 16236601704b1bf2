// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Thermoquad/mhistat/internal/metrics"
	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

// RPC method paths
const (
	PathGetParams = "/rpc/MHI-AC.GetParams"
	PathSetParams = "/rpc/MHI-AC.SetParams"
)

// RPCHandler exposes GetParams and SetParams over HTTP
type RPCHandler struct {
	driver  *mhiac.Driver
	enabled bool
	limiter *RateLimiter
	metrics *metrics.AppMetrics
	logger  *zap.Logger
}

// NewRPCHandler creates the handler. With enabled false every RPC answers 404.
func NewRPCHandler(driver *mhiac.Driver, enabled bool, limiter *RateLimiter, m *metrics.AppMetrics, logger *zap.Logger) *RPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCHandler{
		driver:  driver,
		enabled: enabled,
		limiter: limiter,
		metrics: m,
		logger:  logger,
	}
}

// Register adds the RPC routes to r
func (h *RPCHandler) Register(r *gin.Engine) {
	rpc := r.Group("/", RequestID(), AccessLog(h.logger))
	rpc.GET(PathGetParams, h.GetParams)
	rpc.POST(PathGetParams, h.GetParams)
	rpc.POST(PathSetParams, h.SetParams)
	h.logger.Info("rpc routes registered", zap.Bool("enabled", h.enabled))
}

func (h *RPCHandler) disabled(c *gin.Context) bool {
	if h.enabled {
		return false
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "rpc disabled"})
	return true
}

// GetParams returns the decoded indoor unit state
func (h *RPCHandler) GetParams(c *gin.Context) {
	if h.disabled(c) {
		return
	}
	c.JSON(http.StatusOK, h.driver.GetParams())
}

// SetParams applies the fields present in the JSON body to the downlink
// frame. The response carries a per-field result; a partially applied
// update is still 200 with success false.
func (h *RPCHandler) SetParams(c *gin.Context) {
	if h.disabled(c) {
		return
	}
	if !h.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
		return
	}

	var update mhiac.ParamsUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.driver.SetParams(update)
	h.metrics.ObserveSet(res.Results)
	if !res.Success {
		h.logger.Info("setparams rejected fields",
			zap.Any("results", res.Results),
			zap.String("request_id", c.GetString("request_id")),
		)
	}
	c.JSON(http.StatusOK, res)
}
