// Package api exposes the matchmaking operations over HTTP. Identity comes
// from the X-User-Id and X-User-Role headers set by the gateway in front of
// this service; there is no session state here.
package api

import (
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"investmatch/internal/common/logger"
	"investmatch/internal/matching"
	"investmatch/internal/repository"
	"investmatch/internal/search"
)

type Server struct {
	proposals *repository.ProposalRepository
	service   *matching.Service
	index     *search.ProposalIndex // nil when the search index is disabled
	logger    logger.Logger
}

func NewServer(
	proposals *repository.ProposalRepository,
	service *matching.Service,
	index *search.ProposalIndex,
	log logger.Logger,
) *Server {
	return &Server{
		proposals: proposals,
		service:   service,
		index:     index,
		logger:    log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Handler builds the route table. Operational endpoints (health, metrics,
// pprof) sit next to the API routes so one listener serves everything.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)

	mux.HandleFunc("GET /api/proposals", s.handleBrowseProposals)
	mux.HandleFunc("POST /api/proposals", s.handleCreateProposal)
	mux.HandleFunc("PUT /api/proposals/{id}", s.handleUpdateProposal)
	mux.HandleFunc("DELETE /api/proposals/{id}", s.handleDeleteProposal)

	mux.HandleFunc("POST /api/interests", s.handleRegisterInterest)
	mux.HandleFunc("DELETE /api/interests/{id}", s.handleWithdrawInterest)

	mux.HandleFunc("GET /api/my/proposals", s.handleMyProposals)
	mux.HandleFunc("GET /api/my/interested-investors", s.handleInterestedInvestors)
	mux.HandleFunc("GET /api/my/offers", s.handleMyOffers)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)

	return s.requestLogging(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		s.logger.WithFields(map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("Request handled", nil)
	})
}
