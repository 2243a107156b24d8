package api

import (
	"net/http"
	"strconv"
	"strings"

	"market-doctor/internal/engine"
	"market-doctor/internal/events"
	"market-doctor/internal/logging"

	"github.com/gin-gonic/gin"
)

// handleDiagnose runs the full diagnosis pipeline for one snapshot.
// The report is cached and persisted on a best-effort basis: backend
// failures are logged but never fail the request.
func (s *Server) handleDiagnose(c *gin.Context) {
	var req engine.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Signal.Symbol) == "" {
		errorResponse(c, http.StatusBadRequest, "symbol is required")
		return
	}

	report := s.engine.Diagnose(req)

	ctx := c.Request.Context()
	log := logging.FromContext(ctx)

	if s.cache != nil {
		if err := s.cache.SetReport(ctx, &report); err != nil {
			log.Warn().Err(err).Str("report_id", report.ID).Msg("failed to cache report")
		} else {
			s.eventBus.Publish(events.Event{
				Type: events.EventReportCached,
				Data: map[string]interface{}{"report_id": report.ID, "symbol": report.Symbol},
			})
		}
	}

	if s.repo != nil {
		if err := s.repo.SaveReport(ctx, &report); err != nil {
			log.Error().Err(err).Str("report_id", report.ID).Msg("failed to persist report")
		} else {
			s.eventBus.Publish(events.Event{
				Type: events.EventReportPersisted,
				Data: map[string]interface{}{"report_id": report.ID, "symbol": report.Symbol},
			})
		}
	}

	s.eventBus.PublishReportGenerated(
		report.ID, report.Symbol, report.Timeframe,
		string(report.Decision), report.Confidence,
	)

	successResponse(c, report)
}

// handleGetReport fetches a single report by ID, cache first then database
func (s *Server) handleGetReport(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if s.cache != nil {
		report, err := s.cache.GetReportByID(ctx, id)
		if err != nil {
			log := logging.FromContext(ctx)
			log.Warn().Err(err).Str("report_id", id).Msg("cache lookup failed")
		}
		if report != nil {
			successResponse(c, report)
			return
		}
	}

	if s.repo == nil {
		errorResponse(c, http.StatusNotFound, "report not found")
		return
	}

	report, err := s.repo.GetReportByID(ctx, id)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load report")
		return
	}
	if report == nil {
		errorResponse(c, http.StatusNotFound, "report not found")
		return
	}

	successResponse(c, report)
}

// handleGetLatestReport fetches the most recent report for a symbol and
// timeframe, cache first then database
func (s *Server) handleGetLatestReport(c *gin.Context) {
	symbol := c.Query("symbol")
	timeframe := c.DefaultQuery("timeframe", "1h")
	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "symbol query parameter is required")
		return
	}

	ctx := c.Request.Context()

	if s.cache != nil {
		report, err := s.cache.GetReport(ctx, symbol, timeframe)
		if err != nil {
			log := logging.FromContext(ctx)
			log.Warn().Err(err).Str("symbol", symbol).Msg("cache lookup failed")
		}
		if report != nil {
			successResponse(c, report)
			return
		}
	}

	if s.repo == nil {
		errorResponse(c, http.StatusNotFound, "no report available")
		return
	}

	report, err := s.repo.GetLatestReport(ctx, symbol, timeframe)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load report")
		return
	}
	if report == nil {
		errorResponse(c, http.StatusNotFound, "no report available")
		return
	}

	successResponse(c, report)
}

// handleListReports returns persisted reports, optionally filtered by symbol
func (s *Server) handleListReports(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "report persistence is disabled")
		return
	}

	symbol := c.Query("symbol")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	reports, err := s.repo.ListReports(c.Request.Context(), symbol, limit, offset)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to list reports")
		return
	}

	successResponse(c, gin.H{
		"reports": reports,
		"count":   len(reports),
		"limit":   limit,
		"offset":  offset,
	})
}

// handleInvalidateReport evicts the cached report for a symbol/timeframe
func (s *Server) handleInvalidateReport(c *gin.Context) {
	if s.cache == nil {
		errorResponse(c, http.StatusServiceUnavailable, "report cache is disabled")
		return
	}

	symbol := c.Query("symbol")
	timeframe := c.DefaultQuery("timeframe", "1h")
	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "symbol query parameter is required")
		return
	}

	if err := s.cache.InvalidateReport(c.Request.Context(), symbol, timeframe); err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to invalidate cached report")
		return
	}

	successResponse(c, gin.H{"symbol": symbol, "timeframe": timeframe, "invalidated": true})
}
