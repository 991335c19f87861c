// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observatory

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/spyglass/services/observatory/intent"
	"github.com/AleutianAI/spyglass/services/observatory/learn"
)

// HandleDomainStats reports learning flags and counters.
//
// GET /domains/stats?project=
func (h *Handlers) HandleDomainStats(c *gin.Context) {
	s := h.svc.learner.Counters()
	c.JSON(http.StatusOK, DomainStatsResponse{
		Domains:         s.Domains,
		LearningPending: s.LearningPending,
		TuneCount:       s.TuneCount,
		TuningPending:   s.TuningPending,
		OrphanCount:     s.OrphanCount,
	})
}

// HandleOrphans returns the orphan tag snapshot; while a learning
// cycle is pending it includes the frozen snapshot for the
// synthesizer.
//
// GET /domains/orphans?project=&limit=
func (h *Handlers) HandleOrphans(c *gin.Context) {
	limit := intQuery(c, "limit", 20)

	orphans := h.svc.learner.Orphans(limit)
	if orphans == nil {
		orphans = []string{}
	}

	c.JSON(http.StatusOK, OrphansResponse{
		Orphans:  orphans,
		Snapshot: h.svc.learner.Pending(),
	})
}

// HandleDomainList lists active domains.
//
// GET /domains/list?project=&limit=
func (h *Handlers) HandleDomainList(c *gin.Context) {
	domains := h.svc.learner.Domains(intQuery(c, "limit", 0))
	if domains == nil {
		domains = []intent.Domain{}
	}
	c.JSON(http.StatusOK, DomainListResponse{Domains: domains})
}

// HandleDomainAdd validates and installs proposed domains. The whole
// submission is rejected with 422 on any validation failure.
//
// POST /domains/add
func (h *Handlers) HandleDomainAdd(c *gin.Context) {
	logger := h.handlerLogger(c, "HandleDomainAdd")

	var req AddDomainsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("malformed domain submission", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := h.svc.learner.AddDomains(req.Domains); err != nil {
		if errors.Is(err, learn.ErrInvalidProposal) {
			logger.Warn("domain submission rejected", "error", err)
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error: err.Error(),
				Code:  "INVALID_PROPOSAL",
			})
			return
		}
		logger.Error("domain submission failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to install domains",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	logger.Info("domains installed", "count", len(req.Domains))
	c.JSON(http.StatusOK, gin.H{"success": true, "domains_added": len(req.Domains)})
}

// HandleDomainLearned clears the learning-pending flag without
// installing domains.
//
// POST /domains/learned
func (h *Handlers) HandleDomainLearned(c *gin.Context) {
	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	h.svc.learner.ClearPending()
	c.Status(http.StatusNoContent)
}

// HandleTuneMath runs the math-only tuning pass.
//
// POST /domains/tune/math
func (h *Handlers) HandleTuneMath(c *gin.Context) {
	logger := h.handlerLogger(c, "HandleTuneMath")

	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	res := h.svc.TuneMath()
	logger.Info("tuning pass requested",
		"terms_pruned", res.TermsPruned,
		"domains_deprecated", res.DomainsDeprecated)
	c.JSON(http.StatusOK, res)
}
