// Package server provides the HTTP REST API for the conversation recap service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/convo-recap/internal/config"
	"github.com/jonathan/convo-recap/internal/db"
	"github.com/jonathan/convo-recap/internal/extraction"
	"github.com/jonathan/convo-recap/internal/llm"
	"github.com/jonathan/convo-recap/internal/notify"
	"github.com/jonathan/convo-recap/internal/pipeline"
	"github.com/jonathan/convo-recap/internal/report"
	"github.com/jonathan/convo-recap/internal/server/ratelimit"
	"github.com/jonathan/convo-recap/internal/storage"
	"github.com/jonathan/convo-recap/internal/summarize"
	"github.com/jonathan/convo-recap/internal/tokens"
)

// RunStore is the read side of the run ledger the handlers need. *db.DB
// satisfies it.
type RunStore interface {
	GetRun(ctx context.Context, processingID uuid.UUID) (*db.Run, error)
	GetLatestByConversationID(ctx context.Context, conversationID string) (*db.Run, error)
	ListLatestByAccount(ctx context.Context, accountID string) ([]db.Run, error)
	ListLatestByDate(ctx context.Context, day time.Time) ([]db.Run, error)
	ListAuditEvents(ctx context.Context, processingID uuid.UUID) ([]db.AuditEvent, error)
}

// Pipeline starts and cancels processing runs.
type Pipeline interface {
	StartRun(ctx context.Context, input db.RunInput) (*db.Run, error)
	Cancel(processingID uuid.UUID) error
}

// Redeemer consumes download tokens.
type Redeemer interface {
	Redeem(ctx context.Context, token string) (*tokens.Grant, error)
}

// BlobReader reads stored artifact bytes.
type BlobReader interface {
	Get(key string) ([]byte, error)
}

// LinkVerifier checks presigned artifact links. *storage.Store satisfies it.
type LinkVerifier interface {
	VerifyLink(link string) (string, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	db          *db.DB
	llmClient   llm.Client
	rateLimiter *ratelimit.Limiter
	validate    *validator.Validate

	runs     RunStore
	pipeline Pipeline
	redeemer Redeemer
	blobs    BlobReader
	links    LinkVerifier
}

// New creates a new server instance and wires the full pipeline behind it.
func New(cfg *config.Config) (*Server, error) {
	database, err := db.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store, err := storage.NewStore(cfg.StorageRoot, cfg.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	llmClient, err := llm.NewClient(context.Background(), nil, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	mailer, err := notify.NewSendGridMailer(cfg.SendgridAPIKey, "", cfg.FromEmail, cfg.FromName)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailer: %w", err)
	}

	tokenTTL := time.Duration(cfg.TokenTTLHours) * time.Hour
	tokenService := tokens.NewService(database, tokenTTL)
	notifier := notify.NewNotifier(mailer, cfg.LinkBaseURL, tokenTTL)

	orchestrator := pipeline.New(
		database,
		extraction.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey),
		summarize.New(llmClient),
		report.NewRenderer(),
		store,
		tokenService,
		notifier,
	)
	orchestrator.SetVerbose(cfg.Verbose)

	s := &Server{
		db:        database,
		llmClient: llmClient,
		validate:  validator.New(),
		runs:      database,
		pipeline:  orchestrator,
		redeemer:  tokenService,
		blobs:     store,
		links:     store,
	}
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.LoadConfig())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(s.routes()))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Long timeout for SSE status streams
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("GET /status/{id}", s.handleStatus)
	mux.HandleFunc("GET /status/{id}/stream", s.handleStatusStream)
	mux.HandleFunc("GET /status/{id}/audit", s.handleAuditTrail)
	mux.HandleFunc("POST /cancel/{id}", s.handleCancel)
	mux.HandleFunc("GET /download/{token}", s.handleDownload)
	mux.HandleFunc("GET /artifacts/{key...}", s.handleArtifact)
	mux.HandleFunc("GET /accounts/{account_id}/conversations", s.handleListByAccount)
	mux.HandleFunc("GET /conversations/by-date", s.handleListByDate)
	mux.HandleFunc("GET /conversations/{conversation_id}", s.handleGetConversation)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.llmClient != nil {
		_ = s.llmClient.Close()
	}

	s.db.Close()
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)

		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID extracts the client identifier from the request.
// For now this uses the IP address from RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())+1))
	s.jsonResponse(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate_limit_exceeded",
		"retry_after": info.RetryAfter.Seconds(),
	})
}
