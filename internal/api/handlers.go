package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	apperrors "investmatch/internal/common/errors"
	"investmatch/internal/matching"
	"investmatch/internal/models"
)

const (
	headerUserID   = "X-User-Id"
	headerUserRole = "X-User-Role"
)

type actor struct {
	ID   string
	Role models.Role
}

// actorFrom reads the caller's identity off the gateway headers. The id is
// mandatory on every /api route; the role only where a handler checks it.
func actorFrom(r *http.Request) (actor, bool) {
	id := strings.TrimSpace(r.Header.Get(headerUserID))
	if id == "" {
		return actor{}, false
	}
	return actor{
		ID:   id,
		Role: models.Role(strings.TrimSpace(r.Header.Get(headerUserRole))),
	}, true
}

func (s *Server) handleBrowseProposals(w http.ResponseWriter, r *http.Request) {
	filter := matching.BrowseFilter{
		Category:      r.URL.Query().Get("category"),
		MaxInvestment: r.URL.Query().Get("maxInvestment"),
	}

	if s.index != nil {
		proposals, err := s.index.Search(r.Context(), filter, 100)
		if err == nil {
			writeJSON(w, http.StatusOK, proposals)
			return
		}
		s.logger.WithError(err).Warn("Search index query failed, falling back to store scan", nil)
	}

	all, err := s.proposals.ListAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matching.FilterProposals(all, filter))
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	caller, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}
	if caller.Role != models.RoleBusinessPerson {
		writeForbidden(w, "only business users can post proposals")
		return
	}

	var input models.ProposalInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.writeError(w, apperrors.NewValidationError("malformed request body"))
		return
	}

	id, err := s.proposals.Create(r.Context(), caller.ID, input)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.syncIndex(r, id)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleUpdateProposal(w http.ResponseWriter, r *http.Request) {
	caller, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	id := r.PathValue("id")
	if err := s.requireOwnership(r, id, caller.ID); err != nil {
		s.writeError(w, err)
		return
	}

	var input models.ProposalInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.writeError(w, apperrors.NewValidationError("malformed request body"))
		return
	}

	if err := s.proposals.Update(r.Context(), id, input); err != nil {
		s.writeError(w, err)
		return
	}

	s.syncIndex(r, id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleDeleteProposal(w http.ResponseWriter, r *http.Request) {
	caller, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	id := r.PathValue("id")
	if err := s.requireOwnership(r, id, caller.ID); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.proposals.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	if s.index != nil {
		if err := s.index.Remove(r.Context(), id); err != nil {
			s.logger.WithError(err).Warn("Search index removal failed", nil)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegisterInterest(w http.ResponseWriter, r *http.Request) {
	caller, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}
	if caller.Role != models.RoleInvestor {
		writeForbidden(w, "only investors can register interest")
		return
	}

	var body struct {
		ProposalID       string  `json:"proposalId"`
		InvestmentAmount float64 `json:"investmentAmount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, apperrors.NewValidationError("malformed request body"))
		return
	}

	id, err := s.service.RegisterInterest(r.Context(), caller.ID, body.ProposalID, body.InvestmentAmount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleWithdrawInterest(w http.ResponseWriter, r *http.Request) {
	caller, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}
	if caller.Role != models.RoleInvestor {
		writeForbidden(w, "only investors can withdraw interest")
		return
	}

	if err := s.service.WithdrawInterest(r.Context(), caller.ID, r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMyProposals(w http.ResponseWriter, r *http.Request) {
	caller, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	proposals, err := s.proposals.ListByOwner(r.Context(), caller.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proposals)
}

func (s *Server) handleInterestedInvestors(w http.ResponseWriter, r *http.Request) {
	caller, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	investors, err := s.service.InterestedInvestorsForOwner(r.Context(), caller.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, investors)
}

func (s *Server) handleMyOffers(w http.ResponseWriter, r *http.Request) {
	caller, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	offers, err := s.service.MyInterestedProposals(r.Context(), caller.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	caller, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	summary, err := s.service.DashboardSummary(r.Context(), caller.ID, caller.Role)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// requireOwnership loads the proposal and checks it belongs to the caller.
// The repositories themselves do not gate writes; this is the trust
// boundary for mutations arriving over HTTP.
func (s *Server) requireOwnership(r *http.Request, proposalID, callerID string) error {
	proposal, err := s.proposals.Get(r.Context(), proposalID)
	if err != nil {
		return err
	}
	if proposal.CreatedBy != callerID {
		return apperrors.NewValidationError("proposal belongs to another user")
	}
	return nil
}

// syncIndex reloads the proposal and upserts it into the search index.
// Index drift is tolerated; the store remains the source of truth.
func (s *Server) syncIndex(r *http.Request, proposalID string) {
	if s.index == nil {
		return
	}
	proposal, err := s.proposals.Get(r.Context(), proposalID)
	if err != nil {
		s.logger.WithError(err).Warn("Proposal reload for index sync failed", nil)
		return
	}
	if err := s.index.Index(r.Context(), proposal); err != nil {
		s.logger.WithError(err).Warn("Search index update failed", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
		"error": map[string]string{
			"code":    "UNAUTHENTICATED",
			"message": "missing " + headerUserID + " header",
		},
	})
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusForbidden, map[string]interface{}{
		"error": map[string]string{
			"code":    "FORBIDDEN",
			"message": message,
		},
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperrors.IsValidation(err):
		status = http.StatusBadRequest
	case apperrors.IsNotFound(err):
		status = http.StatusNotFound
	case apperrors.IsStore(err):
		status = http.StatusBadGateway
	}

	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		writeJSON(w, status, map[string]interface{}{
			"error": map[string]interface{}{
				"code":    stdErr.Code,
				"message": stdErr.Message,
			},
		})
		return
	}

	s.logger.WithError(err).Error("Unclassified handler error", nil)
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    "INTERNAL",
			"message": "internal error",
		},
	})
}
