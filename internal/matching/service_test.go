package matching

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "investmatch/internal/common/errors"
	"investmatch/internal/common/logger"
	"investmatch/internal/models"
	"investmatch/internal/repository"
	"investmatch/internal/store"
)

const (
	proposalCollection = "businessProposals"
	interestCollection = "investorInterests"
)

// stubDirectory serves profiles from a map and reports unknown ids the way
// the real directory does.
type stubDirectory struct {
	profiles map[string]models.UserProfile
	lookups  int
}

func (d *stubDirectory) Lookup(ctx context.Context, userID string) (models.UserProfile, error) {
	d.lookups++
	p, ok := d.profiles[userID]
	if !ok {
		return models.UserProfile{}, apperrors.NewUserNotFoundError(userID)
	}
	return p, nil
}

// countingStore counts membership queries per collection so tests can prove
// a code path never touched a collection.
type countingStore struct {
	store.Store
	queries map[string]int
}

func (c *countingStore) Query(ctx context.Context, collection string, pred store.Predicate) ([]store.Record, error) {
	c.queries[collection]++
	return c.Store.Query(ctx, collection, pred)
}

type fixture struct {
	service   *Service
	proposals *repository.ProposalRepository
	interests *repository.InterestRepository
	directory *stubDirectory
	counting  *countingStore
}

func newFixture(t *testing.T, notifier InterestNotifier) *fixture {
	log := logger.NewTestLogger(t)
	counting := &countingStore{Store: store.NewMemoryStore(30), queries: map[string]int{}}

	proposals := repository.NewProposalRepository(counting, proposalCollection, log)
	interests := repository.NewInterestRepository(counting, interestCollection, 30, log)
	dir := &stubDirectory{profiles: map[string]models.UserProfile{}}

	return &fixture{
		service:   NewService(proposals, interests, dir, notifier, 5, log),
		proposals: proposals,
		interests: interests,
		directory: dir,
		counting:  counting,
	}
}

func (f *fixture) addProposal(t *testing.T, ownerID, title string) string {
	t.Helper()
	id, err := f.proposals.Create(context.Background(), ownerID, models.ProposalInput{
		Title:              title,
		Description:        "a description",
		RequiredInvestment: 1000,
		ExpectedROI:        10,
		Category:           models.CategoryTechnology,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) addInterest(t *testing.T, investorID, proposalID string, amount float64) string {
	t.Helper()
	id, err := f.interests.Create(context.Background(), investorID, proposalID, amount)
	require.NoError(t, err)
	return id
}

func TestInterestedInvestorsZeroProposals(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// Another owner's activity must not leak into the result.
	other := f.addProposal(t, "owner-2", "Other venture")
	f.addInterest(t, "inv-1", other, 100)

	out, err := f.service.InterestedInvestorsForOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, out)

	// The interest collection was never queried for the empty owner.
	assert.Equal(t, 0, f.counting.queries[interestCollection])
	assert.Equal(t, 0, f.directory.lookups)
}

func TestInterestedInvestorsEnrichment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	pid := f.addProposal(t, "owner-1", "Robotics lab")
	iid := f.addInterest(t, "inv-1", pid, 250)

	f.directory.profiles["inv-1"] = models.UserProfile{
		ID:    "inv-1",
		Name:  "Ada Lovelace",
		Email: "ada@example.com",
		Role:  models.RoleInvestor,
	}

	out, err := f.service.InterestedInvestorsForOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := out[0]
	assert.Equal(t, iid, got.InterestID)
	assert.Equal(t, "inv-1", got.InvestorID)
	assert.Equal(t, "Ada Lovelace", got.InvestorName)
	assert.Equal(t, "ada@example.com", got.InvestorEmail)
	assert.Equal(t, 250.0, got.InvestmentAmount)
	assert.Equal(t, pid, got.ProposalID)
	assert.Equal(t, "Robotics lab", got.BusinessTitle)
}

func TestInterestedInvestorsMissingProfile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	pid := f.addProposal(t, "owner-1", "Robotics lab")
	f.addInterest(t, "ghost-investor", pid, 500)

	out, err := f.service.InterestedInvestorsForOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, UnknownInvestor, out[0].InvestorName)
	assert.Equal(t, NoEmail, out[0].InvestorEmail)
	assert.Equal(t, "Robotics lab", out[0].BusinessTitle)
}

func TestMyInterestedProposals(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	kept := f.addProposal(t, "owner-1", "Robotics lab")
	doomed := f.addProposal(t, "owner-1", "Doomed venture")

	f.addInterest(t, "inv-1", kept, 100)
	f.addInterest(t, "inv-1", doomed, 200)

	require.NoError(t, f.proposals.Delete(ctx, doomed))

	out, err := f.service.MyInterestedProposals(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "Robotics lab", out[0].BusinessTitle)
	// Orphaned offer keeps its row under the sentinel title.
	assert.Equal(t, UnknownBusiness, out[1].BusinessTitle)
	assert.Equal(t, doomed, out[1].ProposalID)
	assert.Equal(t, 200.0, out[1].InvestmentAmount)
}

func TestDashboardSummaryInvestor(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	pid := f.addProposal(t, "owner-1", "Robotics lab")
	f.addInterest(t, "inv-1", pid, 100)
	f.addInterest(t, "inv-1", pid, 200)
	f.addInterest(t, "inv-2", pid, 300)

	summary, err := f.service.DashboardSummary(ctx, "inv-1", models.RoleInvestor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleInvestor, summary.Role)
	assert.Equal(t, 2, summary.InterestCount)
	assert.Equal(t, 0, summary.ProposalCount)
	assert.Len(t, summary.ProposalPreview, 1)
}

func TestDashboardSummaryBusinessPerson(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		f.addProposal(t, "owner-1", fmt.Sprintf("Venture %d", i))
	}
	f.addProposal(t, "owner-2", "Someone else's venture")

	summary, err := f.service.DashboardSummary(ctx, "owner-1", models.RoleBusinessPerson)
	require.NoError(t, err)
	assert.Equal(t, 7, summary.ProposalCount)
	assert.Equal(t, 0, summary.InterestCount)

	// Preview is the first five proposals across all owners, in store order.
	require.Len(t, summary.ProposalPreview, 5)
	assert.Equal(t, "Venture 0", summary.ProposalPreview[0].Title)
	assert.Equal(t, "Venture 4", summary.ProposalPreview[4].Title)
}

func TestDashboardSummaryUnknownRole(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.DashboardSummary(context.Background(), "u-1", "auditor")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

// recordingNotifier captures InterestReceived calls.
type recordingNotifier struct {
	owners []models.UserProfile
	titles []string
	amount []float64
}

func (r *recordingNotifier) InterestReceived(ctx context.Context, owner models.UserProfile, proposalTitle string, amount float64) {
	r.owners = append(r.owners, owner)
	r.titles = append(r.titles, proposalTitle)
	r.amount = append(r.amount, amount)
}

func TestRegisterInterestNotifiesOwner(t *testing.T) {
	notifier := &recordingNotifier{}
	f := newFixture(t, notifier)
	ctx := context.Background()

	pid := f.addProposal(t, "owner-1", "Robotics lab")
	f.directory.profiles["owner-1"] = models.UserProfile{
		ID:    "owner-1",
		Name:  "Grace Hopper",
		Email: "grace@example.com",
		Role:  models.RoleBusinessPerson,
	}

	id, err := f.service.RegisterInterest(ctx, "inv-1", pid, 750)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, notifier.owners, 1)
	assert.Equal(t, "grace@example.com", notifier.owners[0].Email)
	assert.Equal(t, "Robotics lab", notifier.titles[0])
	assert.Equal(t, 750.0, notifier.amount[0])
}

func TestRegisterInterestMissingProposal(t *testing.T) {
	notifier := &recordingNotifier{}
	f := newFixture(t, notifier)

	_, err := f.service.RegisterInterest(context.Background(), "inv-1", "no-such-proposal", 100)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, notifier.owners)
}

func TestRegisterInterestOwnerLookupFailure(t *testing.T) {
	// A vanished owner profile must not fail the write; only the
	// notification is skipped.
	notifier := &recordingNotifier{}
	f := newFixture(t, notifier)

	pid := f.addProposal(t, "owner-1", "Robotics lab")

	id, err := f.service.RegisterInterest(context.Background(), "inv-1", pid, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Empty(t, notifier.owners)
}

func TestWithdrawInterest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	pid := f.addProposal(t, "owner-1", "Robotics lab")
	iid := f.addInterest(t, "inv-1", pid, 100)

	require.NoError(t, f.service.WithdrawInterest(ctx, "inv-1", iid))
	assert.True(t, apperrors.IsNotFound(f.service.WithdrawInterest(ctx, "inv-1", iid)))
}

func TestWithdrawInterestForeignInvestor(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	pid := f.addProposal(t, "owner-1", "Robotics lab")
	iid := f.addInterest(t, "inv-1", pid, 100)

	err := f.service.WithdrawInterest(ctx, "inv-2", iid)
	assert.True(t, apperrors.IsValidation(err))

	// The offer must survive the rejected withdrawal.
	offers, err := f.service.MyInterestedProposals(ctx, "inv-1")
	require.NoError(t, err)
	assert.Len(t, offers, 1)
}

func TestWatchOwnerProposals(t *testing.T) {
	f := newFixture(t, nil)

	var snapshots [][]models.Proposal
	sub, err := f.service.WatchOwnerProposals("owner-1", func(ps []models.Proposal) {
		snapshots = append(snapshots, ps)
	})
	require.NoError(t, err)
	defer sub.Close()

	require.Len(t, snapshots, 1)
	assert.Empty(t, snapshots[0])

	f.addProposal(t, "owner-1", "Robotics lab")
	require.Len(t, snapshots, 2)
	assert.Len(t, snapshots[1], 1)
}
