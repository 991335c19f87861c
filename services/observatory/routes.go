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
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/spyglass/services/observatory/telemetry"
)

// requestIDKey is the gin context key carrying the request id.
const requestIDKey = "request_id"

// requestIDMiddleware assigns each request an id for log correlation,
// honoring an X-Request-ID header when the caller sent one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RegisterRoutes registers all observatory routes with the router.
//
// Description:
//
//	The hook clients speak these endpoints; all bodies are JSON. The
//	Prometheus scrape lives at /metrics/prom so the JSON accuracy
//	contract at /metrics stays intact.
//
// Endpoints:
//
//	GET  /health             - Liveness plus internal warnings
//	POST /intent             - Append an intent record
//	GET  /intent/recent      - Newest records plus store stats
//	GET  /predict            - Rank files for a keyword set
//	POST /predict/log        - Log a prediction for hit tracking
//	POST /predict/check      - Mark a file access against predictions
//	GET  /metrics            - Rolling prediction accuracy (JSON)
//	GET  /metrics/prom       - Prometheus scrape
//	GET  /domains/stats      - Learning flags and counters
//	GET  /domains/orphans    - Orphan tag snapshot
//	GET  /domains/list       - Active domains
//	POST /domains/add        - Accept proposed domains
//	POST /domains/learned    - Clear the learning-pending flag
//	POST /domains/tune/math  - Run the math-only tuning pass
func RegisterRoutes(router *gin.Engine, handlers *Handlers, metrics *telemetry.Metrics) {
	router.GET("/health", handlers.HandleHealth)

	router.POST("/intent", handlers.HandleAppendIntent)
	router.GET("/intent/recent", handlers.HandleRecent)

	router.GET("/predict", handlers.HandlePredict)
	router.POST("/predict/log", handlers.HandlePredictLog)
	router.POST("/predict/check", handlers.HandlePredictCheck)

	router.GET("/metrics", handlers.HandleMetrics)
	router.GET("/metrics/prom", gin.WrapH(metrics.Handler()))

	domains := router.Group("/domains")
	{
		domains.GET("/stats", handlers.HandleDomainStats)
		domains.GET("/orphans", handlers.HandleOrphans)
		domains.GET("/list", handlers.HandleDomainList)
		domains.POST("/add", handlers.HandleDomainAdd)
		domains.POST("/learned", handlers.HandleDomainLearned)
		domains.POST("/tune/math", handlers.HandleTuneMath)
	}
}
