// Package matching composes the proposal and interest repositories to answer
// the derived questions the views need. The store has no native join, so
// every answer here is a client-side correlation across collections.
package matching

import (
	"context"
	"time"

	apperrors "investmatch/internal/common/errors"
	"investmatch/internal/common/logger"
	"investmatch/internal/common/metrics"
	"investmatch/internal/directory"
	"investmatch/internal/models"
	"investmatch/internal/repository"
	"investmatch/internal/store"
)

// Sentinel display values substituted when a referenced record is gone.
// An interest outlives the proposal it points at (deletes do not cascade),
// so joins must degrade instead of failing the whole aggregate.
const (
	UnknownBusiness = "Unknown Business"
	UnknownProposal = "Unknown Proposal"
	UnknownInvestor = "Unknown Investor"
	NoEmail         = "No email available"
)

// InterestNotifier is told about new interests so the proposal owner can be
// contacted. Delivery is fire-and-forget from the service's point of view.
type InterestNotifier interface {
	InterestReceived(ctx context.Context, owner models.UserProfile, proposalTitle string, amount float64)
}

// Service answers the derived queries spanning proposals and interests.
type Service struct {
	proposals   *repository.ProposalRepository
	interests   *repository.InterestRepository
	users       directory.UserDirectory
	notifier    InterestNotifier
	previewSize int
	logger      logger.Logger
}

func NewService(
	proposals *repository.ProposalRepository,
	interests *repository.InterestRepository,
	users directory.UserDirectory,
	notifier InterestNotifier,
	previewSize int,
	log logger.Logger,
) *Service {
	return &Service{
		proposals:   proposals,
		interests:   interests,
		users:       users,
		notifier:    notifier,
		previewSize: previewSize,
		logger:      log.WithFields(map[string]interface{}{"service": "matching"}),
	}
}

// RegisterInterest records an investor's offer against a proposal and, when
// a notifier is wired, tells the proposal's owner about it. Notification
// problems never fail the write. Returns the new interest's id.
func (s *Service) RegisterInterest(ctx context.Context, investorID, proposalID string, amount float64) (string, error) {
	proposal, err := s.proposals.Get(ctx, proposalID)
	if err != nil {
		return "", err
	}

	interestID, err := s.interests.Create(ctx, investorID, proposalID, amount)
	if err != nil {
		return "", err
	}

	if s.notifier != nil {
		owner, err := s.users.Lookup(ctx, proposal.CreatedBy)
		if err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"owner_id": proposal.CreatedBy,
			}).Warn("Owner lookup failed, skipping interest notification", nil)
		} else {
			s.notifier.InterestReceived(ctx, owner, proposal.Title, amount)
		}
	}

	return interestID, nil
}

// WithdrawInterest removes an offer. Only the investor who recorded the
// interest may withdraw it; anyone else gets a validation error and the
// record stays.
func (s *Service) WithdrawInterest(ctx context.Context, investorID, interestID string) error {
	interest, err := s.interests.Get(ctx, interestID)
	if err != nil {
		return err
	}
	if interest.InvestorID != investorID {
		return apperrors.NewValidationError("interest belongs to another investor")
	}
	return s.interests.Delete(ctx, interestID)
}

// InterestedInvestorsForOwner lists every interest targeting one of the
// owner's proposals, enriched with the investor's directory profile and the
// proposal title. An owner with zero proposals gets an empty result without
// the interest collection being queried at all.
func (s *Service) InterestedInvestorsForOwner(ctx context.Context, ownerID string) ([]models.InterestedInvestor, error) {
	started := time.Now()
	defer func() {
		metrics.MatchQueryDuration.WithLabelValues("interested_investors").Observe(time.Since(started).Seconds())
	}()

	proposals, err := s.proposals.ListByOwner(ctx, ownerID)
	if err != nil {
		metrics.MatchQueries.WithLabelValues("interested_investors", "error").Inc()
		return nil, err
	}

	if len(proposals) == 0 {
		metrics.MatchQueries.WithLabelValues("interested_investors", "ok").Inc()
		return []models.InterestedInvestor{}, nil
	}

	titleByID := make(map[string]string, len(proposals))
	ids := make([]string, 0, len(proposals))
	for _, p := range proposals {
		titleByID[p.ID] = p.Title
		ids = append(ids, p.ID)
	}

	interests, err := s.interests.ListByProposalIDs(ctx, ids)
	if err != nil {
		metrics.MatchQueries.WithLabelValues("interested_investors", "error").Inc()
		return nil, err
	}

	out := make([]models.InterestedInvestor, 0, len(interests))
	for _, interest := range interests {
		enriched := models.InterestedInvestor{
			InterestID:       interest.ID,
			InvestorID:       interest.InvestorID,
			InvestorName:     UnknownInvestor,
			InvestorEmail:    NoEmail,
			InvestmentAmount: interest.InvestmentAmount,
			ProposalID:       interest.ProposalID,
			BusinessTitle:    UnknownProposal,
			CreatedAt:        interest.CreatedAt,
		}

		profile, err := s.users.Lookup(ctx, interest.InvestorID)
		switch {
		case err == nil:
			enriched.InvestorName = profile.Name
			enriched.InvestorEmail = profile.Email
		case apperrors.IsNotFound(err):
			// Keep the sentinels; a vanished directory entry must not
			// drop the interest from the owner's view.
		default:
			metrics.MatchQueries.WithLabelValues("interested_investors", "error").Inc()
			return nil, err
		}

		if title, ok := titleByID[interest.ProposalID]; ok {
			enriched.BusinessTitle = title
		}

		out = append(out, enriched)
	}

	metrics.MatchQueries.WithLabelValues("interested_investors", "ok").Inc()
	return out, nil
}

// MyInterestedProposals lists the investor's offers with the target
// proposal's title attached. Offers whose proposal has since been deleted
// carry the UnknownBusiness sentinel instead of failing the query.
func (s *Service) MyInterestedProposals(ctx context.Context, investorID string) ([]models.InvestorOffer, error) {
	started := time.Now()
	defer func() {
		metrics.MatchQueryDuration.WithLabelValues("my_interested_proposals").Observe(time.Since(started).Seconds())
	}()

	interests, err := s.interests.ListByInvestor(ctx, investorID)
	if err != nil {
		metrics.MatchQueries.WithLabelValues("my_interested_proposals", "error").Inc()
		return nil, err
	}

	out := make([]models.InvestorOffer, 0, len(interests))
	for _, interest := range interests {
		offer := models.InvestorOffer{
			InterestID:       interest.ID,
			ProposalID:       interest.ProposalID,
			BusinessTitle:    UnknownBusiness,
			InvestmentAmount: interest.InvestmentAmount,
			CreatedAt:        interest.CreatedAt,
		}

		proposal, err := s.proposals.Get(ctx, interest.ProposalID)
		switch {
		case err == nil:
			offer.BusinessTitle = proposal.Title
		case apperrors.IsNotFound(err):
			// Orphaned interest: proposal deleted without cascade.
		default:
			metrics.MatchQueries.WithLabelValues("my_interested_proposals", "error").Inc()
			return nil, err
		}

		out = append(out, offer)
	}

	metrics.MatchQueries.WithLabelValues("my_interested_proposals", "ok").Inc()
	return out, nil
}

// DashboardSummary returns the per-role activity count plus a fixed-size
// preview of all proposals in store order for the cross-role activity feed.
func (s *Service) DashboardSummary(ctx context.Context, userID string, role models.Role) (models.DashboardSummary, error) {
	started := time.Now()
	defer func() {
		metrics.MatchQueryDuration.WithLabelValues("dashboard_summary").Observe(time.Since(started).Seconds())
	}()

	summary := models.DashboardSummary{Role: role}

	switch role {
	case models.RoleInvestor:
		count, err := s.interests.CountByInvestor(ctx, userID)
		if err != nil {
			metrics.MatchQueries.WithLabelValues("dashboard_summary", "error").Inc()
			return models.DashboardSummary{}, err
		}
		summary.InterestCount = count
	case models.RoleBusinessPerson:
		proposals, err := s.proposals.ListByOwner(ctx, userID)
		if err != nil {
			metrics.MatchQueries.WithLabelValues("dashboard_summary", "error").Inc()
			return models.DashboardSummary{}, err
		}
		summary.ProposalCount = len(proposals)
	default:
		metrics.MatchQueries.WithLabelValues("dashboard_summary", "error").Inc()
		return models.DashboardSummary{}, apperrors.NewValidationError("unknown role: " + string(role))
	}

	all, err := s.proposals.ListAll(ctx)
	if err != nil {
		metrics.MatchQueries.WithLabelValues("dashboard_summary", "error").Inc()
		return models.DashboardSummary{}, err
	}
	if len(all) > s.previewSize {
		all = all[:s.previewSize]
	}
	summary.ProposalPreview = all

	metrics.MatchQueries.WithLabelValues("dashboard_summary", "ok").Inc()
	return summary, nil
}

// WatchOwnerProposals is the live feed behind the owner's proposal view.
// The caller owns the subscription and must Close it on teardown.
func (s *Service) WatchOwnerProposals(ownerID string, fn func([]models.Proposal)) (store.Subscription, error) {
	return s.proposals.WatchByOwner(ownerID, fn)
}
