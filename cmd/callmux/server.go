package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/callmux/callmux/agent"
	"github.com/callmux/callmux/config"
	"github.com/callmux/callmux/handoff"
	"github.com/callmux/callmux/internal/metrics"
	"github.com/callmux/callmux/internal/server"
	"github.com/callmux/callmux/orchestrator"
	"github.com/callmux/callmux/pool"
	"github.com/callmux/callmux/session"
	"github.com/callmux/callmux/transport"
)

// defaultAgent owns every call until a handoff moves it.
const defaultAgent = "assistant"

// Server wires the engine together: session store, agent registry, handoff
// router, speech pools, and one orchestrator per connected call.
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	logLevel   zap.AtomicLevel

	registry *prometheus.Registry
	metrics  *metrics.Collector

	agents *agent.Registry
	router *handoff.Router
	store  session.Store

	recognizers  *pool.Pool
	synthesizers *pool.Pool

	mediaManager   *server.Manager
	metricsManager *server.Manager
	watcher        *config.FileWatcher
	watcherCancel  context.CancelFunc

	calls sync.WaitGroup
}

// NewServer creates a server from loaded configuration. configPath enables
// log-level hot reload when non-empty.
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, level zap.AtomicLevel) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		logLevel:   level,
	}
}

// Start brings up storage, pools, and both HTTP listeners.
func (s *Server) Start() error {
	if s.cfg.Orchestrator.Mode == orchestrator.ModeDuplex {
		return fmt.Errorf("duplex mode requires a vendor realtime channel; this binary embeds none")
	}

	s.registry = prometheus.NewRegistry()
	s.metrics = metrics.NewCollector("callmux", s.registry, s.logger)

	store, err := session.NewStore(s.cfg.Session)
	if err != nil {
		return fmt.Errorf("init session store: %w", err)
	}
	s.store = store

	s.agents, err = agent.NewRegistry(builtinAgents()...)
	if err != nil {
		return fmt.Errorf("init agent registry: %w", err)
	}
	s.router, err = handoff.BuildRoutingTable(s.agents.Snapshot(), s.logger)
	if err != nil {
		return fmt.Errorf("build routing table: %w", err)
	}

	if err := s.startPools(); err != nil {
		return err
	}
	if err := s.startMediaServer(); err != nil {
		return fmt.Errorf("start media server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}
	s.startConfigWatcher()

	s.logger.Info("all servers started",
		zap.String("media_addr", s.mediaManager.Addr()),
		zap.String("metrics_addr", s.metricsManager.Addr()),
		zap.String("mode", string(s.cfg.Orchestrator.Mode)),
	)
	return nil
}

func (s *Server) startPools() error {
	s.recognizers = pool.New(s.cfg.Recognizers, loopbackFactory, s.metrics, s.logger)
	s.synthesizers = pool.New(s.cfg.Synthesizers, loopbackFactory, s.metrics, s.logger)

	ctx := context.Background()
	if err := s.recognizers.Prepare(ctx, s.cfg.Recognizers.WarmTarget, true); err != nil {
		return fmt.Errorf("prepare recognizer pool: %w", err)
	}
	if err := s.synthesizers.Prepare(ctx, s.cfg.Synthesizers.WarmTarget, true); err != nil {
		return fmt.Errorf("prepare synthesizer pool: %w", err)
	}
	return nil
}

func (s *Server) startMediaServer() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/call", s.handleCall)

	cfg := server.DefaultConfig()
	cfg.Addr = s.cfg.Server.ListenAddr
	cfg.ShutdownTimeout = s.cfg.Server.ShutdownTimeout

	s.mediaManager = server.NewManager(mux, cfg, s.logger)
	return s.mediaManager.Start()
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"version":%q,"build_time":%q,"git_commit":%q}`, Version, BuildTime, GitCommit)
	})

	cfg := server.DefaultConfig()
	cfg.Addr = s.cfg.Server.MetricsAddr
	cfg.ShutdownTimeout = s.cfg.Server.ShutdownTimeout

	s.metricsManager = server.NewManager(mux, cfg, s.logger)
	return s.metricsManager.Start()
}

// startConfigWatcher re-reads the config file on change and applies the log
// level. Other settings require a restart.
func (s *Server) startConfigWatcher() {
	if s.configPath == "" {
		return
	}
	s.watcher = config.NewFileWatcher(s.configPath, 2*time.Second, s.logger)
	s.watcher.OnChange(func(path string) {
		cfg, err := config.NewLoader().WithConfigPath(path).Load()
		if err != nil {
			s.logger.Warn("config change ignored", zap.Error(err))
			return
		}
		newLevel := parseLevel(cfg.Log.Level)
		if s.logLevel.Level() != newLevel {
			s.logLevel.SetLevel(newLevel)
			s.logger.Info("log level updated", zap.String("level", cfg.Log.Level))
		} else {
			s.logger.Info("config file changed; non-log settings apply on restart")
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	s.watcherCancel = cancel
	s.watcher.Start(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		http.Error(w, fmt.Sprintf("session store unavailable: %v", err), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// handleCall upgrades the connection and runs one call until the caller
// hangs up or the transport drops.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	adapter := transport.NewWSAdapter(conn, s.logger)
	defer adapter.Close()

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	log := s.logger.With(zap.String("session_id", sessionID))

	state, err := s.store.Load(r.Context(), sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			log.Warn("session load failed; starting fresh", zap.Error(err))
		}
		state = session.NewState(sessionID, defaultAgent)
	}

	orch, err := orchestrator.New(s.cfg.Orchestrator, orchestrator.Deps{
		State:        state,
		Store:        s.store,
		Router:       s.router,
		Registry:     s.agents,
		Recognizers:  s.recognizers,
		Synthesizers: s.synthesizers,
		Adapter:      adapter,
		Reasoner:     echoReasoner{},
		Recognizer:   loopbackRecognizer{},
		Synthesizer:  loopbackSynthesizer{},
		Recorder:     s.metrics,
		Logger:       log,
	})
	if err != nil {
		log.Error("orchestrator init failed", zap.Error(err))
		return
	}
	defer orch.Close()

	s.calls.Add(1)
	defer s.calls.Done()
	log.Info("call connected", zap.String("agent", state.ActiveAgent))

	for {
		in, err := adapter.ReadInbound(r.Context())
		if err != nil {
			log.Info("call disconnected", zap.Error(err))
			return
		}
		switch in.Type {
		case transport.InboundInput:
			if in.Input == nil {
				continue
			}
			ev := *in.Input
			ev.SessionID = sessionID
			if err := orch.StartTurn(r.Context(), ev); err != nil {
				log.Warn("turn rejected", zap.Error(err))
			}
		case transport.InboundInterrupt:
			reason := in.Reason
			if reason == "" {
				reason = "barge-in"
			}
			orch.Interrupt(reason)
		case transport.InboundHangup:
			log.Info("caller hung up")
			return
		}
	}
}

// WaitForShutdown blocks until a shutdown signal or media server failure.
func (s *Server) WaitForShutdown() {
	if s.mediaManager != nil {
		s.mediaManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops listeners, waits for active calls to drain, and releases
// pools and storage.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")
	ctx := context.Background()

	if s.watcherCancel != nil {
		s.watcherCancel()
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.mediaManager != nil {
		if err := s.mediaManager.Shutdown(ctx); err != nil {
			s.logger.Error("media server shutdown error", zap.Error(err))
		}
	}

	s.calls.Wait()

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.recognizers != nil {
		s.recognizers.Close()
	}
	if s.synthesizers != nil {
		s.synthesizers.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("session store close error", zap.Error(err))
		}
	}
}

// builtinAgents returns the agent set served when no integration replaces
// it. Deployments embedding the engine as a library register their own.
func builtinAgents() []agent.Definition {
	return []agent.Definition{
		{
			Name:           defaultAgent,
			Description:    "General assistant that owns every call at connect time.",
			Greeting:       "Hello, how can I help you today?",
			AllowInterrupt: true,
		},
		{
			Name:           "supervisor",
			Description:    "Escalation target for calls the assistant cannot resolve.",
			Trigger:        "transfer_to_supervisor",
			Greeting:       "This is the supervisor, I have the context of your call.",
			ReturnGreeting: "Supervisor again, go ahead.",
			AllowInterrupt: true,
		},
	}
}
