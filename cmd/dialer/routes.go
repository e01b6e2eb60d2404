package main

import (
	"coldcall-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", h.Healthz)

	// Carrier webhooks (public).
	// NOTE: These endpoints should be protected by Twilio signature validation in production.
	r.POST("/twiml/:call_id", h.TwiMLAnswer)
	r.POST("/twiml/:call_id/respond", h.TwiMLRespond)

	// protected admin group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/prompts", h.ListPrompts)
		v1.POST("/prompts/reload", h.ReloadPrompts)
		v1.GET("/contacts", h.ListContacts)
		v1.POST("/sessions/run", h.RunSession)

		v1.POST("/speech/synthesize", h.Synthesize)
		v1.POST("/speech/transcribe", h.Transcribe)
	}
}
