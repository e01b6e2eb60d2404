package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"coldcall-platform/internal/conversation"
	"coldcall-platform/internal/ledger"
	"coldcall-platform/internal/orchestrator"
	"coldcall-platform/internal/speech"
	"coldcall-platform/internal/telephony"
	"coldcall-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return
// TwiML or JSON.

type Handlers struct {
	Engine       *conversation.Engine
	Ledger       ledger.Ledger
	Orchestrator *orchestrator.Orchestrator

	// Speech is optional; each audition endpoint returns 503 when its
	// direction has no configured adapter.
	Speech *speech.Bridge

	// PublicBaseURL is prepended to the gather action URL so the carrier
	// can reach the respond endpoint.
	PublicBaseURL string
}

const twimlContentType = "application/xml"

// goodbyeLine closes a call whose conversation is gone, for example when a
// webhook arrives for an already-ended call.
const goodbyeLine = "Thank you for your time. Goodbye!"

// --- Carrier webhooks ---

// TwiMLAnswer handles the initial webhook when the callee picks up. It
// speaks the conversation's opening line and gathers speech.
func (h Handlers) TwiMLAnswer(c *gin.Context) {
	callID := c.Param("call_id")
	log := logger.FromGin(c)

	opening, ok := h.Engine.Opening(callID)
	if !ok {
		log.Warn("answer webhook for unknown call", "call_id", callID)
		h.renderHangup(c)
		return
	}

	xml, err := telephony.RenderConverse(opening, h.respondURL(callID))
	if err != nil {
		log.Error("twiml render failed", "call_id", callID, "err", err)
		h.renderHangup(c)
		return
	}
	c.Data(http.StatusOK, twimlContentType, []byte(xml))
}

// TwiMLRespond handles gather callbacks carrying the callee's transcribed
// speech. Opt-outs and ended conversations get a goodbye; everything else
// loops back into another gather.
func (h Handlers) TwiMLRespond(c *gin.Context) {
	callID := c.Param("call_id")
	log := logger.FromGin(c)

	form, err := telephony.ParseTwilioGather(c.Request)
	if err != nil {
		log.Warn("malformed gather callback", "call_id", callID, "err", err)
		h.renderHangup(c)
		return
	}

	if form.SpeechResult == "" {
		// Silence or a failed recognition. Re-prompt with the opening
		// line rather than hanging up on the callee.
		opening, ok := h.Engine.Opening(callID)
		if !ok {
			h.renderHangup(c)
			return
		}
		xml, rerr := telephony.RenderConverse(opening, h.respondURL(callID))
		if rerr != nil {
			h.renderHangup(c)
			return
		}
		c.Data(http.StatusOK, twimlContentType, []byte(xml))
		return
	}

	reply, ok := h.Engine.ProcessInput(c.Request.Context(), callID, form.SpeechResult)
	if !ok {
		h.renderGoodbye(c, goodbyeLine)
		return
	}

	if !h.Engine.IsActive(callID) {
		// Opt-out acknowledged; speak it and hang up.
		h.renderGoodbye(c, reply)
		return
	}

	xml, err := telephony.RenderConverse(reply, h.respondURL(callID))
	if err != nil {
		log.Error("twiml render failed", "call_id", callID, "err", err)
		h.renderGoodbye(c, goodbyeLine)
		return
	}
	c.Data(http.StatusOK, twimlContentType, []byte(xml))
}

// --- Admin API ---

func (h Handlers) ListPrompts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prompts": h.Engine.AvailablePrompts()})
}

func (h Handlers) ReloadPrompts(c *gin.Context) {
	if err := h.Engine.ReloadPrompts(); err != nil {
		logger.FromGin(c).Error("prompt reload failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompts": h.Engine.AvailablePrompts()})
}

func (h Handlers) ListContacts(c *gin.Context) {
	contacts, err := h.Ledger.Load(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("contact load failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "contact load failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts, "count": len(contacts)})
}

// RunSession triggers one calling batch in the background and returns
// immediately. The orchestrator's own concurrency bound still applies, so
// overlapping triggers cannot oversubscribe lines.
func (h Handlers) RunSession(c *gin.Context) {
	if h.Orchestrator == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "orchestrator not configured"})
		return
	}
	log := logger.FromGin(c)
	go func() {
		// The batch outlives the request; do not inherit its context.
		stats, err := h.Orchestrator.RunSession(context.Background())
		if err != nil {
			log.Error("session failed", "err", err)
			return
		}
		log.Info("session finished",
			"dispatched", stats.Dispatched,
			"successful", stats.Successful,
			"opt_outs", stats.OptOuts,
		)
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

// Synthesize lets operators audition the TTS voice on arbitrary text.
func (h Handlers) Synthesize(c *gin.Context) {
	if !h.Speech.CanSynthesize() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "tts not configured"})
		return
	}
	var req synthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "text required"})
		return
	}
	audio := h.Speech.Synthesize(c.Request.Context(), req.Text)
	if len(audio) == 0 {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "synthesis failed"})
		return
	}
	c.Data(http.StatusOK, "audio/wav", audio)
}

// Transcribe runs raw LINEAR16 audio through the recognizer, for checking
// the speech path without placing a call.
func (h Handlers) Transcribe(c *gin.Context) {
	if !h.Speech.CanTranscribe() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "stt not configured"})
		return
	}
	audio, err := c.GetRawData()
	if err != nil || len(audio) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "audio body required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": h.Speech.Transcribe(c.Request.Context(), audio)})
}

func (h Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h Handlers) respondURL(callID string) string {
	return fmt.Sprintf("%s/twiml/%s/respond", h.PublicBaseURL, callID)
}

func (h Handlers) renderHangup(c *gin.Context) {
	xml, err := telephony.RenderHangup()
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, twimlContentType, []byte(xml))
}

func (h Handlers) renderGoodbye(c *gin.Context, line string) {
	xml, err := telephony.RenderGoodbye(line)
	if err != nil {
		h.renderHangup(c)
		return
	}
	c.Data(http.StatusOK, twimlContentType, []byte(xml))
}
