package repository

import (
	"encoding/json"
	"fmt"

	"investmatch/internal/models"
	"investmatch/internal/store"
)

// Field names as persisted in the document store. They match the hosted
// store's historical schema, so existing documents keep working.
const (
	fieldTitle              = "title"
	fieldDescription        = "description"
	fieldRequiredInvestment = "requiredInvestment"
	fieldExpectedROI        = "expectedROI"
	fieldCategory           = "category"
	fieldCreatedBy          = "createdBy"
	fieldCreatedAt          = "createdAt"
	fieldInvestorID         = "investorId"
	fieldProposalID         = "proposalId"
	fieldInvestmentAmount   = "investmentAmount"
)

// decodeInto maps a record's fields onto a model struct through its JSON
// tags. Timestamps come back from the store as RFC3339 strings and parse
// into time.Time on the way through.
func decodeInto(rec store.Record, dst interface{}) error {
	raw, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode record %s: %w", rec.ID, err)
	}
	return nil
}

func decodeProposal(rec store.Record) (models.Proposal, error) {
	var p models.Proposal
	if err := decodeInto(rec, &p); err != nil {
		return models.Proposal{}, err
	}
	p.ID = rec.ID
	return p, nil
}

func decodeInterest(rec store.Record) (models.Interest, error) {
	var i models.Interest
	if err := decodeInto(rec, &i); err != nil {
		return models.Interest{}, err
	}
	i.ID = rec.ID
	return i, nil
}

func decodeProposals(recs []store.Record) ([]models.Proposal, error) {
	out := make([]models.Proposal, 0, len(recs))
	for _, rec := range recs {
		p, err := decodeProposal(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func decodeInterests(recs []store.Record) ([]models.Interest, error) {
	out := make([]models.Interest, 0, len(recs))
	for _, rec := range recs {
		i, err := decodeInterest(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}
