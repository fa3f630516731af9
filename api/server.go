package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/gregtusar/perptrader/pkg/trader"
)

// Strategies is the read side of the strategy registry.
type Strategies interface {
	List() []trader.StrategyState
	Get(id string) (trader.StrategyState, bool)
}

// Server is a read-only monitor for strategies running in this process.
type Server struct {
	strategies Strategies
	logger     *logrus.Logger
	jwtSecret  []byte
	router     *mux.Router
	httpServer *http.Server
}

// NewServer builds the router. An empty jwtSecret disables authentication.
func NewServer(strategies Strategies, logger *logrus.Logger, port int, jwtSecret string) *Server {
	s := &Server{
		strategies: strategies,
		logger:     logger,
		router:     mux.NewRouter(),
	}
	if jwtSecret != "" {
		s.jwtSecret = []byte(jwtSecret)
	}
	s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           c.Handler(s.router),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/strategies", s.handleStrategies).Methods(http.MethodGet)
	api.HandleFunc("/strategies/{id}", s.handleStrategy).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("monitor server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// authMiddleware requires an HS256 bearer token when a secret is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.jwtSecret == nil {
			next.ServeHTTP(w, r)
			return
		}
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		_, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			return s.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil {
			s.logger.WithError(err).Debug("rejected monitor token")
			s.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"strategies": len(s.strategies.List()),
		"timestamp":  time.Now().UTC(),
	})
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.strategies.List())
}

func (s *Server) handleStrategy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	state, ok := s.strategies.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "strategy not found")
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}
