// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

// Package api provides HTTP routing and handlers for the ledger service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ledgerlock/ledgerlock/internal/config"
	"github.com/ledgerlock/ledgerlock/internal/websocket"
)

// Router wires handlers into the HTTP routing tree.
type Router struct {
	handler *Handler
	hub     *websocket.Hub
	cfg     config.ServerConfig
}

// NewRouter creates a router over the given handler set.
func NewRouter(handler *Handler, hub *websocket.Hub, cfg config.ServerConfig) *Router {
	return &Router{
		handler: handler,
		hub:     hub,
		cfg:     cfg,
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.corsMiddleware())

	// ========================
	// Health Endpoints
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
		r.Get("/", router.handler.Health)
	})

	// ========================
	// Transaction Endpoints
	// ========================
	r.Route("/api/v1/transactions", func(r chi.Router) {
		r.Use(router.rateLimit())

		r.Post("/", router.handler.SubmitTransaction)
		r.Get("/", router.handler.ListTransactions)
		r.Get("/{id}", router.handler.GetTransaction)
		r.Put("/{id}/status", router.handler.UpdateTransactionStatus)

		// Decrypts the stored payload; every call lands in the security log.
		r.Post("/{id}/reveal", router.handler.RevealTransaction)
	})

	// ========================
	// Alert Endpoints
	// ========================
	r.Route("/api/v1/alerts", func(r chi.Router) {
		r.Use(router.rateLimit())
		r.Get("/", router.handler.ListAlerts)
	})

	// ========================
	// Backup Endpoints
	// ========================
	r.Route("/api/v1/backups", func(r chi.Router) {
		r.Use(router.rateLimit())
		r.Get("/", router.handler.ListBackups)
		r.Post("/run", router.handler.TriggerBackup)
	})

	// ========================
	// Live Alert Feed
	// ========================
	r.Get("/ws/alerts", func(w http.ResponseWriter, req *http.Request) {
		websocket.ServeWS(router.hub, w, req)
	})

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// rateLimit returns the per-IP rate limiting middleware for API endpoints.
func (router *Router) rateLimit() func(http.Handler) http.Handler {
	requests := router.cfg.RateLimitReqs
	if requests <= 0 {
		requests = 300
	}
	window := router.cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.LimitByIP(requests, window)
}

// corsMiddleware builds the CORS handler from configured origins.
func (router *Router) corsMiddleware() func(http.Handler) http.Handler {
	origins := router.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Actor-ID", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
