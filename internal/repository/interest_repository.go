package repository

import (
	"context"
	"fmt"
	"time"

	apperrors "investmatch/internal/common/errors"
	"investmatch/internal/common/logger"
	"investmatch/internal/models"
	"investmatch/internal/store"
)

// InterestRepository owns CRUD and query operations over Interest records.
// Interests are additive: the same investor may record several interests in
// the same proposal and each one stands on its own.
type InterestRepository struct {
	store      store.Store
	collection string
	batchSize  int
	logger     logger.Logger
}

// NewInterestRepository wires the repository against a store. batchSize is
// the store's membership-query cardinality cap; ListByProposalIDs splits
// larger id sets into batches of at most this size.
func NewInterestRepository(s store.Store, collection string, batchSize int, log logger.Logger) *InterestRepository {
	return &InterestRepository{
		store:      s,
		collection: collection,
		batchSize:  batchSize,
		logger:     log.WithFields(map[string]interface{}{"repository": "interests"}),
	}
}

// Create persists a new interest. The amount must be a positive number; a
// missing or non-positive amount is a validation error, never a silent no-op.
func (r *InterestRepository) Create(ctx context.Context, investorID, proposalID string, amount float64) (string, error) {
	if investorID == "" {
		return "", apperrors.NewValidationError("investorId is required")
	}
	if proposalID == "" {
		return "", apperrors.NewValidationError("proposalId is required")
	}
	if amount <= 0 {
		return "", apperrors.NewInvalidAmountError(fmt.Sprintf("got %v", amount))
	}

	id, err := r.store.Insert(ctx, r.collection, map[string]interface{}{
		fieldInvestorID:       investorID,
		fieldProposalID:       proposalID,
		fieldInvestmentAmount: amount,
		fieldCreatedAt:        time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	r.logger.Info("interest recorded", map[string]interface{}{
		"interestId": id,
		"investorId": investorID,
		"proposalId": proposalID,
		"amount":     amount,
	})
	return id, nil
}

// Get returns a single interest by id.
func (r *InterestRepository) Get(ctx context.Context, interestID string) (models.Interest, error) {
	rec, err := r.store.Get(ctx, r.collection, interestID)
	if err != nil {
		return models.Interest{}, err
	}
	return decodeInterest(rec)
}

// Delete withdraws an offer. Deleting an id that is already gone reports
// RECORD_NOT_FOUND, so a retried withdraw is safe.
func (r *InterestRepository) Delete(ctx context.Context, interestID string) error {
	if err := r.store.Delete(ctx, r.collection, interestID); err != nil {
		return err
	}
	r.logger.Info("interest withdrawn", map[string]interface{}{"interestId": interestID})
	return nil
}

// ListByInvestor returns every interest recorded by investorID.
func (r *InterestRepository) ListByInvestor(ctx context.Context, investorID string) ([]models.Interest, error) {
	recs, err := r.store.Query(ctx, r.collection, store.Where(fieldInvestorID, investorID))
	if err != nil {
		return nil, err
	}
	return decodeInterests(recs)
}

// CountByInvestor returns how many interests investorID has recorded.
func (r *InterestRepository) CountByInvestor(ctx context.Context, investorID string) (int, error) {
	interests, err := r.ListByInvestor(ctx, investorID)
	if err != nil {
		return 0, err
	}
	return len(interests), nil
}

// ListByProposalIDs returns every interest targeting any of the given
// proposals. The id set is split into membership-cap-sized batches and the
// results merged with duplicates dropped by record id. A failing batch is
// reported with its range so callers know exactly which slice of the query
// failed; earlier batches' results are returned alongside the error.
func (r *InterestRepository) ListByProposalIDs(ctx context.Context, proposalIDs []string) ([]models.Interest, error) {
	if len(proposalIDs) == 0 {
		return []models.Interest{}, nil
	}

	seen := make(map[string]bool)
	out := []models.Interest{}

	for start := 0; start < len(proposalIDs); start += r.batchSize {
		end := start + r.batchSize
		if end > len(proposalIDs) {
			end = len(proposalIDs)
		}
		batch := proposalIDs[start:end]

		recs, err := r.store.Query(ctx, r.collection, store.WhereIn(fieldProposalID, batch))
		if err != nil {
			return out, fmt.Errorf("interest batch %d-%d of %d ids: %w", start, end, len(proposalIDs), err)
		}

		for _, rec := range recs {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			interest, err := decodeInterest(rec)
			if err != nil {
				return out, fmt.Errorf("interest batch %d-%d of %d ids: %w", start, end, len(proposalIDs), err)
			}
			out = append(out, interest)
		}
	}

	return out, nil
}
