package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "investmatch/internal/common/errors"
	"investmatch/internal/common/logger"
	"investmatch/internal/models"
	"investmatch/internal/store"
)

func newProposalRepo(t *testing.T) (*ProposalRepository, *store.MemoryStore) {
	s := store.NewMemoryStore(30)
	return NewProposalRepository(s, "businessProposals", logger.NewTestLogger(t)), s
}

func validInput() models.ProposalInput {
	return models.ProposalInput{
		Title:              "Clinic network expansion",
		Description:        "Three new locations in underserved districts",
		RequiredInvestment: 250000,
		ExpectedROI:        12.5,
		Category:           models.CategoryHealthcare,
	}
}

func TestProposalCreateAndGet(t *testing.T) {
	repo, _ := newProposalRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, "owner-1", validInput())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	p, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "Clinic network expansion", p.Title)
	assert.Equal(t, 250000.0, p.RequiredInvestment)
	assert.Equal(t, 12.5, p.ExpectedROI)
	assert.Equal(t, models.CategoryHealthcare, p.Category)
	assert.Equal(t, "owner-1", p.CreatedBy)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestProposalCreateValidation(t *testing.T) {
	repo, _ := newProposalRepo(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*models.ProposalInput)
	}{
		{"empty title", func(in *models.ProposalInput) { in.Title = "" }},
		{"empty description", func(in *models.ProposalInput) { in.Description = "" }},
		{"negative investment", func(in *models.ProposalInput) { in.RequiredInvestment = -100 }},
		{"empty category", func(in *models.ProposalInput) { in.Category = "" }},
		{"unknown category", func(in *models.ProposalInput) { in.Category = "Agriculture" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := repo.Create(ctx, "owner-1", in)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}

	t.Run("missing owner", func(t *testing.T) {
		_, err := repo.Create(ctx, "", validInput())
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("zero investment is allowed", func(t *testing.T) {
		in := validInput()
		in.RequiredInvestment = 0
		id, err := repo.Create(ctx, "owner-1", in)
		require.NoError(t, err)

		p, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0.0, p.RequiredInvestment)
	})
}

func TestProposalUpdate(t *testing.T) {
	repo, _ := newProposalRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, "owner-1", validInput())
	require.NoError(t, err)

	in := validInput()
	in.Title = "Clinic network expansion, phase 2"
	in.RequiredInvestment = 400000
	require.NoError(t, repo.Update(ctx, id, in))

	p, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Clinic network expansion, phase 2", p.Title)
	assert.Equal(t, 400000.0, p.RequiredInvestment)
	// Owner and creation time survive the update.
	assert.Equal(t, "owner-1", p.CreatedBy)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestProposalUpdateMissing(t *testing.T) {
	repo, _ := newProposalRepo(t)

	err := repo.Update(context.Background(), "no-such-id", validInput())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestProposalDelete(t *testing.T) {
	repo, _ := newProposalRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, "owner-1", validInput())
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, id))

	_, err = repo.Get(ctx, id)
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(repo.Delete(ctx, id)))
}

func TestProposalListByOwner(t *testing.T) {
	repo, _ := newProposalRepo(t)
	ctx := context.Background()

	first, err := repo.Create(ctx, "owner-1", validInput())
	require.NoError(t, err)
	_, err = repo.Create(ctx, "owner-2", validInput())
	require.NoError(t, err)
	second, err := repo.Create(ctx, "owner-1", validInput())
	require.NoError(t, err)

	mine, err := repo.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, first, mine[0].ID)
	assert.Equal(t, second, mine[1].ID)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := repo.ListByOwner(ctx, "owner-3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProposalWatchByOwner(t *testing.T) {
	repo, _ := newProposalRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, "owner-1", validInput())
	require.NoError(t, err)

	var snapshots [][]models.Proposal
	sub, err := repo.WatchByOwner("owner-1", func(ps []models.Proposal) {
		snapshots = append(snapshots, ps)
	})
	require.NoError(t, err)
	defer sub.Close()

	require.Len(t, snapshots, 1)
	assert.Len(t, snapshots[0], 1)

	_, err = repo.Create(ctx, "owner-1", validInput())
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Len(t, snapshots[1], 2)

	sub.Close()
	_, err = repo.Create(ctx, "owner-1", validInput())
	require.NoError(t, err)
	assert.Len(t, snapshots, 2)
}
