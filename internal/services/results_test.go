package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/go-redis/redismock/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votepay/backend/internal/metrics"
	"github.com/votepay/backend/internal/models"
)

type resultsFixture struct {
	*engineFixture
	metrics *metrics.Metrics
	mock    redismock.ClientMock
	results *ResultsService
	asOf    time.Time
}

func newResultsFixture(t *testing.T) *resultsFixture {
	t.Helper()
	f := newEngineFixture(t)
	db, mock := redismock.NewClientMock()
	m := metrics.NewUnregistered()
	svc := NewResultsService(f.repo, db, 15*time.Second, m)
	asOf := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return asOf }

	return &resultsFixture{engineFixture: f, metrics: m, mock: mock, results: svc, asOf: asOf}
}

func (f *resultsFixture) expectedDocument(t *testing.T) (*models.EventResults, []byte) {
	t.Helper()
	tallies, err := f.repo.TallyEventVotes(context.Background(), f.eventID)
	require.NoError(t, err)
	doc := &models.EventResults{EventID: f.eventID, Candidates: tallies, AsOf: f.asOf}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return doc, data
}

func TestGetResults_MissRecomputesAndCaches(t *testing.T) {
	f := newResultsFixture(t)
	_, second := f.repo.addCandidate(f.eventID, "Beta")
	f.confirm(t, f.pendingVote(5).ID, models.OutcomeSuccess)
	f.confirm(t, f.repo.addPending(models.KindVote, f.eventID, second, 2, "4.00", "momo", time.Now()).ID, models.OutcomeSuccess)

	_, data := f.expectedDocument(t)
	key := "results:" + f.eventID.String()
	f.mock.ExpectGet(key).RedisNil()
	f.mock.ExpectSet(key, data, 15*time.Second).SetVal("OK")

	res, err := f.results.GetResults(context.Background(), f.eventID)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "Alpha", res.Candidates[0].Name)
	assert.Equal(t, int64(5), res.Candidates[0].Votes)
	assert.Equal(t, "Beta", res.Candidates[1].Name)
	assert.Equal(t, int64(2), res.Candidates[1].Votes)
	assert.Equal(t, f.asOf, res.AsOf)

	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ResultsCache.WithLabelValues("miss")))
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.ResultsDrift))
}

func TestGetResults_Hit(t *testing.T) {
	f := newResultsFixture(t)
	doc, data := f.expectedDocument(t)
	key := "results:" + f.eventID.String()
	f.mock.ExpectGet(key).SetVal(string(data))

	res, err := f.results.GetResults(context.Background(), f.eventID)
	require.NoError(t, err)
	assert.Equal(t, doc.EventID, res.EventID)
	assert.Len(t, res.Candidates, len(doc.Candidates))

	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Equal(t, 1, f.repo.calls["TallyEventVotes"], "only the fixture's own tally")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ResultsCache.WithLabelValues("hit")))
}

func TestGetResults_CacheErrorFallsBackToStore(t *testing.T) {
	f := newResultsFixture(t)
	f.confirm(t, f.pendingVote(3).ID, models.OutcomeSuccess)
	_, data := f.expectedDocument(t)
	key := "results:" + f.eventID.String()
	f.mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	f.mock.ExpectSet(key, data, 15*time.Second).SetErr(errors.New("connection refused"))

	res, err := f.results.GetResults(context.Background(), f.eventID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Candidates[0].Votes)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ResultsCache.WithLabelValues("error")))
}

func TestGetResults_ReportsCounterDrift(t *testing.T) {
	f := newEngineFixture(t)
	m := metrics.NewUnregistered()
	svc := NewResultsService(f.repo, nil, time.Second, m)

	f.confirm(t, f.pendingVote(4).ID, models.OutcomeSuccess)
	f.repo.state().candidates[f.candidateID].voteCount = 9

	res, err := svc.GetResults(context.Background(), f.eventID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Candidates[0].Votes, "vote rows are authoritative")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ResultsDrift))
}

func TestResultsInvalidate(t *testing.T) {
	f := newResultsFixture(t)
	f.mock.ExpectDel("results:" + f.eventID.String()).SetVal(1)

	require.NoError(t, f.results.Invalidate(context.Background(), f.eventID))
	assert.NoError(t, f.mock.ExpectationsWereMet())

	withoutRedis := NewResultsService(f.repo, nil, time.Second, metrics.NewUnregistered())
	assert.NoError(t, withoutRedis.Invalidate(context.Background(), f.eventID))
}

// A confirmation is visible on the next read once its invalidation ran
func TestResults_ReadAfterConfirmation(t *testing.T) {
	repo := newMemoryRepo()
	_, eventID := repo.addEvent(models.EventLive, "1.00")
	_, candidateID := repo.addCandidate(eventID, "Alpha")
	results := NewResultsService(repo, nil, time.Minute, metrics.NewUnregistered())
	invalidations := newRecordingInvalidator()
	confirmer := NewConfirmationService(repo, invalidations, nil, quietAudit(), metrics.NewUnregistered())

	before, err := results.GetResults(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), before.Candidates[0].Votes)

	tx := repo.addPending(models.KindVote, eventID, candidateID, 7, "7.00", "ussd", time.Now())
	_, err = confirmer.Confirm(context.Background(), ConfirmInput{TransactionID: tx.ID, Outcome: models.OutcomeSuccess})
	require.NoError(t, err)
	<-invalidations.events

	after, err := results.GetResults(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), after.Candidates[0].Votes)
}

// interleavedTally runs during while a tally is in flight, before it returns.
// It fails the tally if its context was cancelled by then, the way a database
// driver aborts a query.
type interleavedTally struct {
	*memoryRepo
	during func()
}

func (r *interleavedTally) TallyEventVotes(ctx context.Context, eventID uuid.UUID) ([]models.CandidateTally, error) {
	tallies, err := r.memoryRepo.TallyEventVotes(ctx, eventID)
	if r.during != nil {
		r.during()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return tallies, err
}

func TestGetResults_InvalidationDuringRecomputeIsNotCached(t *testing.T) {
	f := newResultsFixture(t)
	repo := &interleavedTally{memoryRepo: f.repo}
	f.results.repo = repo
	key := "results:" + f.eventID.String()

	f.mock.ExpectGet(key).RedisNil()
	f.mock.ExpectDel(key).SetVal(0)
	var once sync.Once
	repo.during = func() {
		once.Do(func() {
			assert.NoError(t, f.results.Invalidate(context.Background(), f.eventID))
		})
	}

	res, err := f.results.GetResults(context.Background(), f.eventID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Candidates[0].Votes)
	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ResultsCache.WithLabelValues("stale")))

	f.confirm(t, f.pendingVote(2).ID, models.OutcomeSuccess)
	_, data := f.expectedDocument(t)
	f.mock.ExpectGet(key).RedisNil()
	f.mock.ExpectSet(key, data, 15*time.Second).SetVal("OK")

	res, err = f.results.GetResults(context.Background(), f.eventID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Candidates[0].Votes)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGetResults_CancelledCallerDoesNotFailSharedRecompute(t *testing.T) {
	f := newEngineFixture(t)
	f.confirm(t, f.pendingVote(3).ID, models.OutcomeSuccess)

	started := make(chan struct{})
	release := make(chan struct{})
	repo := &interleavedTally{memoryRepo: f.repo}
	var once sync.Once
	repo.during = func() {
		once.Do(func() { close(started) })
		<-release
	}
	svc := NewResultsService(repo, nil, time.Second, metrics.NewUnregistered())

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.GetResults(leaderCtx, f.eventID)
		leaderErr <- err
	}()
	<-started

	type outcome struct {
		res *models.EventResults
		err error
	}
	waiter := make(chan outcome, 1)
	go func() {
		res, err := svc.GetResults(context.Background(), f.eventID)
		waiter <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	close(release)

	got := <-waiter
	require.NoError(t, got.err)
	assert.Equal(t, int64(3), got.res.Candidates[0].Votes)
}
