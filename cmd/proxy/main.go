// Command proxy wires the guardrail pipeline into an HTTP server: one
// endpoint that accepts a canonical request, resolves a provider adapter,
// runs it through the orchestrator, and returns the canonical response.
// It is reference wiring, not the core itself — the core is
// provider/transport agnostic and lives entirely under internal/.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/nilgai-labs/guardproxy/internal/adapter"
	"github.com/nilgai-labs/guardproxy/internal/audit"
	"github.com/nilgai-labs/guardproxy/internal/config"
	"github.com/nilgai-labs/guardproxy/internal/httputil"
	"github.com/nilgai-labs/guardproxy/internal/ledger"
	"github.com/nilgai-labs/guardproxy/internal/orchestrator"
	"github.com/nilgai-labs/guardproxy/internal/provideradapter"
	"github.com/nilgai-labs/guardproxy/internal/registry"
	"github.com/nilgai-labs/guardproxy/internal/skillregistry"
	"github.com/nilgai-labs/guardproxy/internal/types"

	"github.com/jackc/pgx/v5/pgxpool"
)

var version = "dev"

func main() {
	deploymentPath := flag.String("deployment", "configs/deployment.yaml", "path to the deployment config file")
	policyPath := flag.String("policy", "configs/policy.json", "path to the policy config file")
	skillsPath := flag.String("skills", "", "optional path to a skill registry YAML file")
	skillsGRPCAddr := flag.String("skills-grpc-addr", "", "optional address of a remote gRPC skill service (mutually exclusive with -skills)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	deployment, err := config.LoadDeployment(*deploymentPath)
	if err != nil {
		logger.Error("failed to load deployment config", "error", err)
		os.Exit(1)
	}

	policy, err := config.LoadPolicy(*policyPath)
	if err != nil {
		logger.Error("failed to load policy config", "error", err)
		os.Exit(1)
	}

	var skillReg skillregistry.Registry
	switch {
	case *skillsPath != "" && *skillsGRPCAddr != "":
		logger.Error("-skills and -skills-grpc-addr are mutually exclusive")
		os.Exit(1)
	case *skillsPath != "":
		reg, err := skillregistry.LoadYAMLRegistry(*skillsPath)
		if err != nil {
			logger.Error("failed to load skill registry", "error", err)
			os.Exit(1)
		}
		skillReg = reg
		logger.Info("skill registry loaded", "path", *skillsPath)
	case *skillsGRPCAddr != "":
		reg, err := skillregistry.DialRemoteRegistry(*skillsGRPCAddr, deployment.Routing.AttemptTimeout)
		if err != nil {
			logger.Error("failed to dial remote skill registry", "error", err)
			os.Exit(1)
		}
		defer reg.Close()
		skillReg = reg
		logger.Info("skill registry dialed", "addr", *skillsGRPCAddr)
	}

	costLedger := buildLedger(deployment.Ledger, logger)

	auditSink := audit.NewMultiSink(
		audit.NewSlogSink(logger),
		audit.NewPrometheusSink(),
	)

	adapterRegistry := buildAdapterRegistry(policy.AgnosticSettings.AllowedProviders, deployment, logger)

	orch := orchestrator.New()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	r.Get("/guardproxy/v1/health", healthHandler)
	r.Post("/guardproxy/v1/proxy", proxyHandler(orch, adapterRegistry, policy, skillReg, costLedger, auditSink))

	addr := fmt.Sprintf("%s:%d", deployment.Server.Host, deployment.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  deployment.Server.ReadTimeout,
		WriteTimeout: deployment.Server.WriteTimeout,
		IdleTimeout:  deployment.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("guardproxy starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), deployment.Server.GracefulShutdown)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("guardproxy stopped")
}

func buildLedger(cfg config.LedgerConfig, logger *slog.Logger) ledger.Ledger {
	switch cfg.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable, falling back to in-memory ledger", "error", err)
			return ledger.NewMemoryLedger()
		}
		logger.Info("ledger backend: redis")
		return ledger.NewRedisLedger(rdb)
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.Postgres.DSN())
		if err != nil {
			logger.Warn("postgres not reachable, falling back to in-memory ledger", "error", err)
			return ledger.NewMemoryLedger()
		}
		logger.Info("ledger backend: postgres")
		return ledger.NewPostgresLedger(pool)
	default:
		logger.Info("ledger backend: memory")
		return ledger.NewMemoryLedger()
	}
}

func buildAdapterRegistry(allowed []types.ProviderTag, deployment *config.DeploymentConfig, logger *slog.Logger) *registry.Registry {
	reg := registry.New(allowed)
	retry := adapter.RetryPolicy{
		MaxAttempts:    deployment.Routing.MaxRetries,
		InitialDelay:   deployment.Routing.InitialDelay,
		BackoffFactor:  deployment.Routing.BackoffFactor,
		AttemptTimeout: deployment.Routing.AttemptTimeout,
	}

	for name, provCfg := range deployment.Providers.Providers {
		tag := types.ProviderTag(name)
		client := &http.Client{Timeout: provCfg.Timeout}
		breaker := registry.NewCircuitBreaker(
			deployment.Routing.CircuitBreaker.FailureThreshold,
			deployment.Routing.CircuitBreaker.RecoveryProbeInterval,
		)

		var a adapter.Adapter
		switch tag {
		case types.ProviderAnthropic:
			a = provideradapter.NewAnthropicAdapter(provCfg, client, retry)
		case types.ProviderOpenAI:
			a = provideradapter.NewOpenAIAdapter(provCfg, client, retry)
		case types.ProviderLocalOllama:
			a = provideradapter.NewOllamaAdapter(provCfg, client, retry)
		default:
			logger.Warn("unrecognized provider in deployment config, skipping", "provider", name)
			continue
		}
		reg.Register(tag, a, breaker)
	}
	return reg
}

func proxyHandler(
	orch *orchestrator.Orchestrator,
	adapterRegistry *registry.Registry,
	policy *config.Policy,
	skillReg skillregistry.Registry,
	costLedger ledger.Ledger,
	auditSink audit.Sink,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteBadRequestError(w, "", "invalid request body: "+err.Error())
			return
		}

		a, breaker, err := adapterRegistry.Resolve(req.Provider)
		if err != nil {
			recordRejection(auditSink, &req, types.Violation{
				Code:        types.CodeProviderNotAllowed,
				Message:     err.Error(),
				Interceptor: types.InterceptorOrchestrator,
			})
			writeBlockedResponse(w, req.ID, err)
			return
		}
		if breaker != nil && !breaker.Allow() {
			openErr := fmt.Errorf("provider %q circuit is open", req.Provider)
			recordRejection(auditSink, &req, types.Violation{
				Code:        types.CodeAdapterError,
				Message:     openErr.Error(),
				Interceptor: types.InterceptorOrchestrator,
				Payload:     map[string]any{"provider": req.Provider},
			})
			writeBlockedResponse(w, req.ID, openErr)
			return
		}

		started := time.Now()
		var alignRegistry interface{ Has(string) bool }
		if skillReg != nil {
			alignRegistry = skillReg
		}

		resp, violations, info := orchestrator.Run(r.Context(), orch, &req, a, policy, orchestrator.Options{Registry: alignRegistry})
		duration := time.Since(started)

		if breaker != nil {
			if info.ExecuteFailed {
				breaker.RecordFailure()
			} else {
				breaker.RecordSuccess()
			}
		}

		if req.SessionID != nil && resp.Usage.CostUSD > 0 {
			costLedger.Record(r.Context(), *req.SessionID, resp.Usage.CostUSD)
		}

		outcome := audit.OutcomePass
		if len(violations) > 0 {
			outcome = audit.OutcomeBlocked
		}
		sessionID := ""
		if req.SessionID != nil {
			sessionID = *req.SessionID
		}
		auditSink.Record(audit.Entry{
			Timestamp:    time.Now().UTC(),
			RequestID:    req.ID,
			Provider:     req.Provider,
			Model:        req.Model,
			SessionID:    sessionID,
			Interceptors: audit.InterceptorsFor(info.ReachedOutbound),
			Violations:   violations,
			Outcome:      outcome,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CostUSD:      resp.Usage.CostUSD,
			DurationMS:   duration.Milliseconds(),
		})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"response":   resp,
			"violations": violations,
		})
	}
}

// writeBlockedResponse reports a rejection that happened before the
// orchestrator ever ran — an unregistered provider or an open circuit.
// This is distinct from a pipeline block, which still returns a normal
// canonical response alongside its violations.
func writeBlockedResponse(w http.ResponseWriter, requestID string, err error) {
	httputil.WriteServiceUnavailableError(w, requestID, err.Error())
}

// recordRejection reports a call that never reached the orchestrator at
// all (an unregistered provider, an open circuit), so every call produces
// exactly one audit entry whether the pipeline ever ran or not.
func recordRejection(sink audit.Sink, req *types.Request, violation types.Violation) {
	sessionID := ""
	if req.SessionID != nil {
		sessionID = *req.SessionID
	}
	sink.Record(audit.Entry{
		Timestamp:  time.Now().UTC(),
		RequestID:  req.ID,
		Provider:   req.Provider,
		Model:      req.Model,
		SessionID:  sessionID,
		Violations: []types.Violation{violation},
		Outcome:    audit.OutcomeBlocked,
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "version": version})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func generateRequestID() string {
	now := time.Now()
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), hex.EncodeToString(b))
}
