// Package server exposes the engine over HTTP for the command collaborator
// process, plus the health and metrics endpoints operations expect.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conebot/conebot-go/internal/earn"
	"github.com/conebot/conebot-go/internal/engine"
	"github.com/conebot/conebot-go/internal/logger"
	"github.com/conebot/conebot-go/internal/repository"
)

type Server struct {
	httpServer *http.Server
	store      repository.Store
	engine     engine.Service
	earn       earn.Service
}

// NewServer builds the router and wires the services.
func NewServer(port int, store repository.Store, eng engine.Service, earnSvc earn.Service) *Server {
	s := &Server{store: store, engine: eng, earn: earnSvc}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/guilds/{guildID}", func(r chi.Router) {
			r.Post("/transfer", s.handleTransfer)
			r.Post("/pay", s.handlePay)
			r.Post("/exchange", s.handleExchange)
			r.Post("/purchase", s.handlePurchase)
			r.Post("/open", s.handleOpen)
			r.Post("/use-item", s.handleUseItem)
			r.Post("/sell", s.handleSell)
			r.Post("/earn", s.handleEarn)
			r.Delete("/{kind}/{name}", s.handleCascadeDelete)
			r.Get("/users/{userID}/balances", s.handleGetBalances)
			r.Get("/users/{userID}/inventory", s.handleGetInventory)
			r.Get("/currencies", s.handleListCurrencies)
			r.Get("/items", s.handleListItems)
			r.Get("/store", s.handleListStore)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/give", s.handleGive)
				r.Post("/take", s.handleTake)
				r.Post("/give-item", s.handleGiveItem)
				r.Post("/currencies", s.handleCreateCurrency)
				r.Put("/currencies/{name}", s.handleUpdateCurrency)
				r.Post("/items", s.handleCreateItem)
				r.Put("/items/{name}", s.handleUpdateItem)
				r.Post("/store", s.handleCreateStoreEntry)
				r.Put("/store/{item}/{currency}", s.handleUpdateStoreEntry)
				r.Post("/droptables/{table}/entries", s.handleAddDropTableEntry)
				r.Delete("/droptables/{table}/entries/{entryID}", s.handleRemoveDropTableEntry)
			})
		})
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start blocks serving until Shutdown or a listener error.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// requestIDMiddleware stamps every request with an ID the logger picks up.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithRequestID(r.Context(), logger.GenerateRequestID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.FromContext(r.Context()).Info("Request handled",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
