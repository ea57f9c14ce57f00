// Package handlers exposes the operator HTTP API: ingest ledger browsing,
// ticket browsing, blocklist management, scheduler control and the
// Instagram webhook.
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"ticketdesk-go/internal/config"
	"ticketdesk-go/internal/instagram"
	"ticketdesk-go/internal/pipeline"
	"ticketdesk-go/internal/repository"
	"ticketdesk-go/internal/scheduler"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db        *gorm.DB
	repo      *repository.Repository
	pipeline  *pipeline.Pipeline
	scheduler *scheduler.Scheduler
	igClient  *instagram.Client
	igConfig  config.InstagramConfig
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *gorm.DB, repo *repository.Repository, p *pipeline.Pipeline, s *scheduler.Scheduler, igClient *instagram.Client, igConfig config.InstagramConfig) *Handlers {
	return &Handlers{
		db:        db,
		repo:      repo,
		pipeline:  p,
		scheduler: s,
		igClient:  igClient,
		igConfig:  igConfig,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/webhooks/instagram", h.VerifyInstagramWebhook)
	router.POST("/webhooks/instagram", h.HandleInstagramWebhook)

	api := router.Group("/api/v1")
	{
		api.GET("/ingest", h.GetIngestRecords)
		api.GET("/ingest/:id", h.GetIngestRecord)

		api.GET("/tickets", h.GetTickets)
		api.GET("/tickets/:id", h.GetTicket)
		api.POST("/tickets/:id/instagram-reply", h.SendInstagramReply)

		api.POST("/instagram/sync", h.SyncInstagramMessages)

		api.GET("/blocked-senders", h.GetBlockedSenders)
		api.POST("/blocked-senders", h.CreateBlockedSender)
		api.DELETE("/blocked-senders/:id", h.DeleteBlockedSender)

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}
