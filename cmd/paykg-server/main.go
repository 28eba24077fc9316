// Command paykg-server exposes the knowledge graph over HTTP: the
// authorization endpoint the payment agent calls before submitting a
// transaction, plus the diagnostic read surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hebuildapps/paykg/pkg/paykg"
	"github.com/hebuildapps/paykg/pkg/paykg/config"
	"github.com/hebuildapps/paykg/pkg/paykg/internalerr"
	"github.com/hebuildapps/paykg/pkg/paykg/store/sqlite"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	srvCfg, err := config.LoadServer()
	if err != nil {
		logger.Fatal("load server config", zap.Error(err))
	}

	cfg := config.Default()
	if srvCfg.ConfigPath != "" {
		cfg, err = config.Load(srvCfg.ConfigPath)
		if err != nil {
			logger.Fatal("load config", zap.Error(err), zap.String("path", srvCfg.ConfigPath))
		}
	}

	ctx := context.Background()
	opts := paykg.Options{Config: cfg}
	if srvCfg.DBPath != "" {
		persist, err := sqlite.Open(ctx, srvCfg.DBPath)
		if err != nil {
			logger.Fatal("open store", zap.Error(err), zap.String("path", srvCfg.DBPath))
		}
		opts.Persist = persist
	}

	graph, err := paykg.New(ctx, opts)
	if err != nil {
		logger.Fatal("build graph", zap.Error(err))
	}
	defer graph.Close()

	srv := &server{graph: graph, logger: logger, computeTimeout: srvCfg.ComputeTimeout}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /assert", srv.handleAssert)
	mux.HandleFunc("POST /retract", srv.handleRetract)
	mux.HandleFunc("POST /query", srv.handleQuery)
	mux.HandleFunc("POST /authorize", srv.handleAuthorize)
	mux.HandleFunc("GET /facts", srv.handleFacts)
	mux.HandleFunc("GET /rules", srv.handleRules)
	mux.HandleFunc("GET /stats", srv.handleStats)

	httpSrv := &http.Server{
		Addr:         srvCfg.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", srvCfg.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("draining")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

type server struct {
	graph          *paykg.Graph
	logger         *zap.Logger
	computeTimeout time.Duration
}

type termRequest struct {
	Term string `json:"term"`
}

func (s *server) handleAssert(w http.ResponseWriter, r *http.Request) {
	var req termRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	added, err := s.graph.Assert(r.Context(), req.Term)
	if err != nil {
		s.fail(w, statusFor(err), err)
		return
	}
	s.logger.Info("assert", zap.String("term", req.Term), zap.Bool("added", added))
	s.respond(w, map[string]any{"added": added})
}

func (s *server) handleRetract(w http.ResponseWriter, r *http.Request) {
	var req termRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	removed, err := s.graph.Retract(r.Context(), req.Term)
	if err != nil {
		s.fail(w, statusFor(err), err)
		return
	}
	s.logger.Info("retract", zap.String("term", req.Term), zap.Bool("removed", removed))
	s.respond(w, map[string]any{"removed": removed})
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req termRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.computeTimeout)
	defer cancel()
	results, err := s.graph.Query(ctx, req.Term)
	if err != nil {
		s.fail(w, statusFor(err), err)
		return
	}
	if results == nil {
		results = []paykg.Binding{}
	}
	s.respond(w, map[string]any{"results": results})
}

type authorizeRequest struct {
	User      string `json:"user"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

func (s *server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.computeTimeout)
	defer cancel()
	decision, err := s.graph.AuthorizePayment(ctx, req.User, req.Amount, req.Recipient)
	if err != nil {
		s.fail(w, statusFor(err), err)
		return
	}
	s.logger.Info("authorize",
		zap.String("id", decision.ID),
		zap.String("user", req.User),
		zap.String("amount", req.Amount),
		zap.String("recipient", req.Recipient),
		zap.Bool("allow", decision.Allow),
		zap.Strings("reasons", decision.Reasons),
	)
	s.respond(w, decision)
}

func (s *server) handleFacts(w http.ResponseWriter, r *http.Request) {
	s.respond(w, map[string]any{"facts": s.graph.ListFacts()})
}

func (s *server) handleRules(w http.ResponseWriter, r *http.Request) {
	s.respond(w, map[string]any{"rules": s.graph.ListRules()})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.respond(w, map[string]any{
		"facts":    len(s.graph.ListFacts()),
		"rules":    len(s.graph.ListRules()),
		"cache":    s.graph.CacheStats(),
		"activity": len(s.graph.RecentActivity(0)),
	})
}

func (s *server) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *server) fail(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// statusFor maps engine errors to HTTP statuses: malformed input is the
// caller's fault, inconclusive evaluation is unavailability, anything else
// is internal.
func statusFor(err error) int {
	var parseErr *internalerr.ParseError
	switch {
	case errors.As(err, &parseErr), errors.Is(err, internalerr.ErrInvalidRule):
		return http.StatusBadRequest
	case errors.Is(err, internalerr.ErrDepthExceeded), errors.Is(err, internalerr.ErrComputeTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
