package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	apperrors "investmatch/internal/common/errors"
	"investmatch/internal/common/logger"
	"investmatch/internal/models"
	"investmatch/internal/store"
)

// proposalInputSchema validates the five caller-supplied fields before any
// write reaches the store.
var proposalInputSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"title":       map[string]interface{}{"type": "string", "minLength": 1},
		"description": map[string]interface{}{"type": "string", "minLength": 1},
		"requiredInvestment": map[string]interface{}{
			"type":    "number",
			"minimum": 0,
		},
		"expectedROI": map[string]interface{}{"type": "number"},
		"category": map[string]interface{}{
			"type": "string",
			"enum": []string{"Technology", "Healthcare", "Finance", "Education"},
		},
	},
	"required": []string{"title", "description", "requiredInvestment", "expectedROI", "category"},
}

// ProposalRepository owns CRUD and query operations over Proposal records.
type ProposalRepository struct {
	store      store.Store
	collection string
	logger     logger.Logger
}

func NewProposalRepository(s store.Store, collection string, log logger.Logger) *ProposalRepository {
	return &ProposalRepository{
		store:      s,
		collection: collection,
		logger:     log.WithFields(map[string]interface{}{"repository": "proposals"}),
	}
}

// Create validates the input and persists a new proposal owned by ownerID.
// The caller is trusted to have checked the owner's role at the identity
// boundary; createdBy is never re-validated afterward.
func (r *ProposalRepository) Create(ctx context.Context, ownerID string, input models.ProposalInput) (string, error) {
	if ownerID == "" {
		return "", apperrors.NewValidationError("ownerId is required")
	}
	if err := validateProposalInput(input); err != nil {
		return "", err
	}

	id, err := r.store.Insert(ctx, r.collection, map[string]interface{}{
		fieldTitle:              input.Title,
		fieldDescription:        input.Description,
		fieldRequiredInvestment: input.RequiredInvestment,
		fieldExpectedROI:        input.ExpectedROI,
		fieldCategory:           string(input.Category),
		fieldCreatedBy:          ownerID,
		fieldCreatedAt:          time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	r.logger.Info("proposal created", map[string]interface{}{
		"proposalId": id,
		"ownerId":    ownerID,
		"category":   input.Category,
	})
	return id, nil
}

// Update overwrites the five mutable fields. Ownership is not checked here;
// the storage layer's access rules are the trust boundary for writes.
func (r *ProposalRepository) Update(ctx context.Context, proposalID string, input models.ProposalInput) error {
	if proposalID == "" {
		return apperrors.NewValidationError("proposalId is required")
	}
	if err := validateProposalInput(input); err != nil {
		return err
	}

	err := r.store.Update(ctx, r.collection, proposalID, map[string]interface{}{
		fieldTitle:              input.Title,
		fieldDescription:        input.Description,
		fieldRequiredInvestment: input.RequiredInvestment,
		fieldExpectedROI:        input.ExpectedROI,
		fieldCategory:           string(input.Category),
	})
	if err != nil {
		return err
	}

	r.logger.Info("proposal updated", map[string]interface{}{"proposalId": proposalID})
	return nil
}

// Delete removes the proposal. Interests pointing at it are left in place;
// joins substitute a sentinel title for the missing proposal.
func (r *ProposalRepository) Delete(ctx context.Context, proposalID string) error {
	if err := r.store.Delete(ctx, r.collection, proposalID); err != nil {
		return err
	}
	r.logger.Info("proposal deleted", map[string]interface{}{"proposalId": proposalID})
	return nil
}

// Get returns a single proposal by id.
func (r *ProposalRepository) Get(ctx context.Context, proposalID string) (models.Proposal, error) {
	rec, err := r.store.Get(ctx, r.collection, proposalID)
	if err != nil {
		return models.Proposal{}, err
	}
	return decodeProposal(rec)
}

// ListAll returns every proposal in store order.
func (r *ProposalRepository) ListAll(ctx context.Context) ([]models.Proposal, error) {
	recs, err := r.store.Query(ctx, r.collection, store.All())
	if err != nil {
		return nil, err
	}
	return decodeProposals(recs)
}

// ListByOwner returns the proposals whose createdBy equals ownerID.
func (r *ProposalRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Proposal, error) {
	recs, err := r.store.Query(ctx, r.collection, store.Where(fieldCreatedBy, ownerID))
	if err != nil {
		return nil, err
	}
	return decodeProposals(recs)
}

// WatchByOwner is the live variant of ListByOwner: fn receives the owner's
// full current proposal set immediately and after every remote change. The
// returned subscription must be closed when the consuming view goes away.
func (r *ProposalRepository) WatchByOwner(ownerID string, fn func([]models.Proposal)) (store.Subscription, error) {
	return r.store.Subscribe(r.collection, store.Where(fieldCreatedBy, ownerID), func(recs []store.Record) {
		proposals, err := decodeProposals(recs)
		if err != nil {
			r.logger.Warn("dropping undecodable snapshot", map[string]interface{}{
				"ownerId": ownerID,
				"error":   err.Error(),
			})
			return
		}
		fn(proposals)
	})
}

func validateProposalInput(input models.ProposalInput) error {
	schemaLoader := gojsonschema.NewGoLoader(proposalInputSchema)
	documentLoader := gojsonschema.NewGoLoader(input)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("schema validation error: %v", err))
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return apperrors.NewValidationError(fmt.Sprintf("%v", errs))
	}
	if !models.ValidCategory(input.Category) {
		return apperrors.NewInvalidCategoryError(string(input.Category))
	}
	return nil
}
