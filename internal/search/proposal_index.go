// Package search maintains an Elasticsearch index of proposals so the
// public browse filter can be pushed down to a query engine instead of
// scanning the whole collection client-side.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	apperrors "investmatch/internal/common/errors"
	"investmatch/internal/common/logger"
	"investmatch/internal/matching"
	"investmatch/internal/models"
)

// ProposalIndex mirrors the proposal collection into an index. Failures are
// surfaced as retryable search errors; callers degrade to the scan path.
type ProposalIndex struct {
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewProposalIndex(es *elasticsearch.Client, index string, log logger.Logger) *ProposalIndex {
	return &ProposalIndex{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "proposal-index"}),
	}
}

// Index upserts a proposal document keyed by its store id.
func (x *ProposalIndex) Index(ctx context.Context, p models.Proposal) error {
	body, err := json.Marshal(p)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(err)
	}

	res, err := x.es.Index(
		x.index,
		strings.NewReader(string(body)),
		x.es.Index.WithDocumentID(p.ID),
		x.es.Index.WithContext(ctx),
	)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperrors.NewSearchQueryFailedError(fmt.Errorf("index %s: %s", p.ID, res.Status()))
	}
	return nil
}

// Remove deletes a proposal document. A missing document is not an error;
// the index only has to converge with the store.
func (x *ProposalIndex) Remove(ctx context.Context, proposalID string) error {
	res, err := x.es.Delete(
		x.index,
		proposalID,
		x.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return apperrors.NewSearchQueryFailedError(fmt.Errorf("delete %s: %s", proposalID, res.Status()))
	}
	return nil
}

// Search serves the browse filter from the index: term on category unless
// wildcarded, range on requiredInvestment when the threshold parses.
func (x *ProposalIndex) Search(ctx context.Context, filter matching.BrowseFilter, size int) ([]models.Proposal, error) {
	queryBody := buildBrowseQuery(filter)

	body, err := json.Marshal(queryBody)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(err)
	}

	res, err := x.es.Search(
		x.es.Search.WithContext(ctx),
		x.es.Search.WithIndex(x.index),
		x.es.Search.WithBody(strings.NewReader(string(body))),
		x.es.Search.WithSize(size),
	)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(fmt.Errorf("search: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string          `json:"_id"`
				Source models.Proposal `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(err)
	}

	out := make([]models.Proposal, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		p := hit.Source
		p.ID = hit.ID
		out = append(out, p)
	}
	return out, nil
}

func buildBrowseQuery(filter matching.BrowseFilter) map[string]interface{} {
	must := []map[string]interface{}{}

	category := strings.TrimSpace(filter.Category)
	if category != "" && !strings.EqualFold(category, matching.CategoryAny) {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{
				"category.keyword": category,
			},
		})
	}

	if threshold := strings.TrimSpace(filter.MaxInvestment); threshold != "" {
		if _, err := json.Number(threshold).Float64(); err == nil {
			must = append(must, map[string]interface{}{
				"range": map[string]interface{}{
					"requiredInvestment": map[string]interface{}{
						"lte": json.Number(threshold),
					},
				},
			})
		}
	}

	if len(must) == 0 {
		return map[string]interface{}{
			"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		}
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
	}
}
