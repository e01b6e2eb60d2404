package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coldcall-platform/internal/auth"
	"coldcall-platform/internal/compliance"
	"coldcall-platform/internal/config"
	"coldcall-platform/internal/conversation"
	"coldcall-platform/internal/convlog"
	"coldcall-platform/internal/httpapi"
	"coldcall-platform/internal/ledger"
	"coldcall-platform/internal/llm"
	"coldcall-platform/internal/orchestrator"
	"coldcall-platform/internal/prompt"
	"coldcall-platform/internal/speech"
	"coldcall-platform/internal/telephony"
	"coldcall-platform/pkg/logger"
	"coldcall-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const conversationLogPath = "conversation_log.jsonl"

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Env, cfg.App.LogFile)
	if err != nil {
		slog.Error("logger init failed", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Contact ledger: flat CSV by default, Postgres when configured.
	var store ledger.Ledger
	switch cfg.Ledger.Backend {
	case "postgres":
		db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.Ledger.DSN, utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		store = ledger.NewPostgresLedger(db)
	default:
		store = ledger.NewCSVLedger(cfg.Ledger.CSVPath, log)
	}

	dnc, err := compliance.LoadDNCFile(cfg.Compliance.DNCFilePath)
	if err != nil {
		log.Error("dnc load failed", "err", err)
		os.Exit(1)
	}

	// Redis is optional; it adds a shared DNC set and a cross-process cap.
	var cap orchestrator.SessionCap
	if cfg.Redis.Addr != "" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.Redis.Addr})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()

		redisDNC, err := compliance.LoadDNCRedis(rootCtx, rdb, "coldcall:dnc")
		if err != nil {
			log.Error("redis dnc load failed", "err", err)
			os.Exit(1)
		}
		dnc = compliance.Merge(dnc, redisDNC)
		cap = orchestrator.NewRedisSessionCap(rdb, "", cfg.Session.MaxConcurrentCalls, 0)
	}
	log.Info("dnc list loaded", "entries", len(dnc))

	gate, err := compliance.NewGate(dnc, cfg.Compliance.Timezone, cfg.Compliance.CallingHoursStart, cfg.Compliance.CallingHoursEnd, log)
	if err != nil {
		log.Error("compliance gate init failed", "err", err)
		os.Exit(1)
	}

	prompts, err := prompt.NewStore(cfg.Session.PromptsDir, log)
	if err != nil {
		log.Error("prompt store init failed", "err", err)
		os.Exit(1)
	}

	gen, err := llm.New(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, log)
	if err != nil {
		log.Error("llm client init failed", "err", err)
		os.Exit(1)
	}

	engine := conversation.NewEngine(prompts, gen, log)

	// Speech adapters are best-effort and independent; the call loop works
	// without them because the carrier does speech-to-text in the gather
	// verb.
	var tts speech.Synthesizer
	if g, err := speech.NewGoogleTTS(rootCtx, cfg.Speech.TTSLanguage, cfg.Speech.TTSVoice); err != nil {
		log.Warn("google tts unavailable, synthesis audition disabled", "err", err)
	} else {
		tts = g
	}
	var stt speech.RecognizerFactory
	if cfg.Speech.STTServerURL != "" {
		stt = speech.NewVoskFactory(cfg.Speech.STTServerURL)
	}
	var bridge *speech.Bridge
	if tts != nil || stt != nil {
		bridge = speech.NewBridge(tts, stt, log)
	}

	dialer := telephony.NewTwilioDialer(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
	convLog := convlog.NewWriter(conversationLogPath)

	orch := orchestrator.New(store, gate, engine, dialer, convLog, cap, orchestrator.Options{
		FromNumber:         cfg.Twilio.PhoneNumber,
		PublicBaseURL:      cfg.App.PublicBaseURL,
		MaxConcurrentCalls: cfg.Session.MaxConcurrentCalls,
		CallTimeout:        cfg.Session.ConversationTimeout,
		DialGrace:          cfg.Session.ConversationTimeout,
	}, log)

	authManager, err := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, 15*time.Minute)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Engine:        engine,
		Ledger:        store,
		Orchestrator:  orch,
		Speech:        bridge,
		PublicBaseURL: cfg.App.PublicBaseURL,
	}
	registerRoutes(r, h, auth.RequireOperator(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("dialer listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	// The calling loop runs until shutdown; sessions themselves decide
	// whether calling hours permit any dialing.
	go func() {
		if err := orch.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("calling loop failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
