package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go-pipeline/internal/common/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type moveCall struct {
	DealID  string
	StageID string
	At      time.Time
}

type fakeStore struct {
	mu         sync.Mutex
	stages     []models.Stage
	deals      []models.Deal
	stagesErr  error
	dealsErr   error
	moveErr    error
	moves      []moveCall
	stageCalls int
}

func (f *fakeStore) ListStages(ctx context.Context) ([]models.Stage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stageCalls++
	if f.stagesErr != nil {
		return nil, f.stagesErr
	}
	return append([]models.Stage(nil), f.stages...), nil
}

func (f *fakeStore) ListDealsWithDetails(ctx context.Context) ([]models.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dealsErr != nil {
		return nil, f.dealsErr
	}
	out := make([]models.Deal, len(f.deals))
	for i, d := range f.deals {
		out[i] = d.Clone()
	}
	return out, nil
}

func (f *fakeStore) MoveDeal(ctx context.Context, dealID, stageID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, moveCall{DealID: dealID, StageID: stageID, At: at})
	if f.moveErr != nil {
		return f.moveErr
	}
	known := false
	for _, st := range f.stages {
		if st.ID == stageID {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("stage %s violates foreign key", stageID)
	}
	for i := range f.deals {
		if f.deals[i].ID == dealID {
			f.deals[i].StageID = stageID
			f.deals[i].UpdatedAt = at
			return nil
		}
	}
	return errors.New("no rows affected")
}

func (f *fakeStore) loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stageCalls
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingNotifier) last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notes) == 0 {
		return Notification{}
	}
	return r.notes[len(r.notes)-1]
}

type recordingListener struct {
	mu     sync.Mutex
	boards []Board
}

func (r *recordingListener) BoardChanged(b Board) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boards = append(r.boards, b)
}

func stage(id string, order int) models.Stage {
	return models.Stage{ID: id, Name: "Stage " + id, OrderIndex: order, Color: "#3B82F6"}
}

func deal(id, stageID, budget string) models.Deal {
	return models.Deal{
		ID:              id,
		DealCode:        "MON-2025-" + id,
		StageID:         stageID,
		ClientName:      "Client " + id,
		EstimatedBudget: decimal.RequireFromString(budget),
		Margin:          decimal.RequireFromString("10"),
		Status:          models.DealStatusUnpaid,
	}
}

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestSynchronizer(t *testing.T, store *fakeStore) (*Synchronizer, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	s := NewSynchronizer(store, Options{
		Notifier: notifier,
		Debounce: 5 * time.Millisecond,
		Now:      func() time.Time { return fixedNow },
	})
	t.Cleanup(s.Close)
	return s, notifier
}

func requireConsistent(t *testing.T, b Board) {
	t.Helper()
	seen := map[string]int{}
	for _, c := range b.Stages {
		sum := decimal.Zero
		for _, d := range c.Deals {
			sum = sum.Add(d.EstimatedBudget)
			assert.Equal(t, c.ID, d.StageID, "deal %s listed under the wrong stage", d.ID)
			seen[d.ID]++
		}
		assert.True(t, sum.Equal(c.TotalValue), "stage %s total %s != sum %s", c.ID, c.TotalValue, sum)
		assert.Equal(t, len(c.Deals), c.DealCount, "stage %s count", c.ID)
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "deal %s appears %d times", id, n)
	}
}

func TestLoadComputesTotalsPerStage(t *testing.T) {
	store := &fakeStore{
		stages: []models.Stage{stage("b", 2), stage("a", 1), stage("c", 3)},
		deals: []models.Deal{
			deal("1", "a", "100.10"),
			deal("2", "a", "200.20"),
			deal("3", "b", "50"),
		},
	}
	s, _ := newTestSynchronizer(t, store)

	require.NoError(t, s.Load(context.Background()))
	b := s.Snapshot()
	requireConsistent(t, b)

	require.Len(t, b.Stages, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{b.Stages[0].ID, b.Stages[1].ID, b.Stages[2].ID})
	assert.Equal(t, "300.3", b.Stages[0].TotalValue.String())
	assert.Equal(t, 2, b.Stages[0].DealCount)
	assert.Equal(t, "50", b.Stages[1].TotalValue.String())
	assert.Equal(t, 0, b.Stages[2].DealCount)
	assert.True(t, b.Stages[2].TotalValue.IsZero())

	assert.Equal(t, "350.3", b.TotalPipeline.String())
	assert.Equal(t, "30", b.TotalMargin.String())
	assert.Equal(t, 3, b.DealCount)
	assert.True(t, b.Loaded)
}

func TestLoadDropsDealsWithUnknownStage(t *testing.T) {
	store := &fakeStore{
		stages: []models.Stage{stage("a", 1)},
		deals:  []models.Deal{deal("1", "a", "10"), deal("orphan", "gone", "999")},
	}
	s, _ := newTestSynchronizer(t, store)

	require.NoError(t, s.Load(context.Background()))
	b := s.Snapshot()

	_, _, found := b.FindDeal("orphan")
	assert.False(t, found)
	assert.Equal(t, 1, b.DealCount)
	assert.Equal(t, "10", b.TotalPipeline.String())
}

func TestLoadFailureKeepsPreviousProjection(t *testing.T) {
	store := &fakeStore{
		stages: []models.Stage{stage("a", 1)},
		deals:  []models.Deal{deal("1", "a", "10")},
	}
	s, notifier := newTestSynchronizer(t, store)
	require.NoError(t, s.Load(context.Background()))
	before := s.Snapshot()

	store.mu.Lock()
	store.dealsErr = errors.New("connection reset")
	store.mu.Unlock()

	err := s.Load(context.Background())
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.EqualError(t, loadErr.Unwrap(), "connection reset")

	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, LevelError, notifier.last().Level)
	assert.Equal(t, "Failed to load pipeline data", notifier.last().Message)
}

func TestCompleteDragSameStageIsNoop(t *testing.T) {
	store := &fakeStore{
		stages: []models.Stage{stage("a", 1), stage("b", 2)},
		deals:  []models.Deal{deal("1", "a", "100")},
	}
	s, notifier := newTestSynchronizer(t, store)
	require.NoError(t, s.Load(context.Background()))
	before := s.Snapshot()

	moved, err := s.CompleteDrag(context.Background(), "1", "a")
	require.NoError(t, err)
	assert.False(t, moved)

	assert.Equal(t, before, s.Snapshot())
	assert.Empty(t, store.moves)
	assert.Empty(t, notifier.notes)
}

func TestCompleteDragSameStagePublishesClearedDrag(t *testing.T) {
	store := &fakeStore{
		stages: []models.Stage{stage("a", 1), stage("b", 2)},
		deals:  []models.Deal{deal("1", "a", "100")},
	}
	s, notifier := newTestSynchronizer(t, store)
	require.NoError(t, s.Load(context.Background()))
	listener := &recordingListener{}
	s.Subscribe(listener)
	before := s.Snapshot()

	require.True(t, s.BeginDrag("1"))
	moved, err := s.CompleteDrag(context.Background(), "1", "a")
	require.NoError(t, err)
	assert.False(t, moved)

	after := s.Snapshot()
	assert.Nil(t, after.PendingDrag)
	assert.Greater(t, after.Version, before.Version)
	assert.Equal(t, before.Stages, after.Stages)

	listener.mu.Lock()
	defer listener.mu.Unlock()
	require.NotEmpty(t, listener.boards)
	last := listener.boards[len(listener.boards)-1]
	assert.Nil(t, last.PendingDrag)
	assert.Equal(t, after.Version, last.Version)
	assert.Empty(t, store.moves)
	assert.Empty(t, notifier.notes)
}

func TestCompleteDragUnknownDealIsNoop(t *testing.T) {
	store := &fakeStore{
		stages: []models.Stage{stage("a", 1), stage("b", 2)},
		deals:  []models.Deal{deal("1", "a", "100")},
	}
	s, _ := newTestSynchronizer(t, store)
	require.NoError(t, s.Load(context.Background()))
	before := s.Snapshot()

	moved, err := s.CompleteDrag(context.Background(), "missing", "b")
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, before, s.Snapshot())
	assert.Empty(t, store.moves)
}

func TestCompleteDragUnknownDealPublishesClearedDrag(t *testing.T) {
	store := &fakeStore{
		stages: []models.Stage{stage("a", 1), stage("b", 2)},
		deals:  []models.Deal{deal("1", "a", "100")},
	}
	s, _ := newTestSynchronizer(t, store)
	require.NoError(t, s.Load(context.Background()))
	listener := &recordingListener{}
	s.Subscribe(listener)

	require.True(t, s.BeginDrag("1"))
	moved, err := s.CompleteDrag(context.Background(), "missing", "b")
	require.NoError(t, err)
	assert.False(t, moved)

	listener.mu.Lock()
	defer listener.mu.Unlock()
	require.NotEmpty(t, listener.boards)
	last := listener.boards[len(listener.boards)-1]
	assert.Nil(t, last.PendingDrag)
	assert.Equal(t, s.Snapshot().Version, last.Version)
	assert.Empty(t, store.moves)
}

func TestCompleteDragSuccessMovesDealAndTotals(t *testing.T) {
	store := &fakeStore{
		stages: []models.Stage{stage("a", 1), stage("b", 2), stage("c", 3)},
		deals:  []models.Deal{deal("1", "a", "100"), deal("2", "c", "40")},
	}
	s, notifier := newTestSynchronizer(t, store)
	require.NoError(t, s.Load(context.Background()))
	require.True(t, s.BeginDrag("1"))
	require.NotNil(t, s.Snapshot().PendingDrag)
	before := s.Snapshot()

	moved, err := s.CompleteDrag(context.Background(), "1", "b")
	require.NoError(t, err)
	assert.True(t, moved)

	b := s.Snapshot()
	requireConsistent(t, b)
	a, _ := b.Column("a")
	bb, _ := b.Column("b")
	c, _ := b.Column("c")
	assert.True(t, a.TotalValue.IsZero())
	assert.Equal(t, 0, a.DealCount)
	assert.Equal(t, "100", bb.TotalValue.String())
	assert.Equal(t, 1, bb.DealCount)
	assert.Equal(t, "b", bb.Deals[0].StageID)

	cBefore, _ := before.Column("c")
	assert.Equal(t, cBefore, c)

	assert.Nil(t, b.PendingDrag)
	require.Len(t, store.moves, 1)
	assert.Equal(t, moveCall{DealID: "1", StageID: "b", At: fixedNow}, store.moves[0])
	assert.Equal(t, 1, store.loads(), "success must not reload")
	assert.Equal(t, "Deal moved successfully", notifier.last().Message)
}

func TestCompleteDragPersistFailureReloadsOnce(t *testing.T) {
	store := &fakeStore{
		stages:  []models.Stage{stage("a", 1), stage("b", 2)},
		deals:   []models.Deal{deal("1", "a", "100")},
		moveErr: errors.New("permission denied"),
	}
	s, notifier := newTestSynchronizer(t, store)
	require.NoError(t, s.Load(context.Background()))

	moved, err := s.CompleteDrag(context.Background(), "1", "b")
	assert.False(t, moved)
	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "1", persistErr.DealID)
	assert.Equal(t, "b", persistErr.StageID)

	assert.Equal(t, 2, store.loads(), "exactly one reload after the failed write")

	fresh, _ := newTestSynchronizer(t, store)
	require.NoError(t, fresh.Load(context.Background()))
	assert.Equal(t, fresh.Snapshot().Stages, s.Snapshot().Stages)

	a, _ := s.Snapshot().Column("a")
	assert.Equal(t, 1, a.DealCount)
	assert.Equal(t, "100", a.TotalValue.String())
	assert.Equal(t, "Failed to move deal", notifier.last().Message)
}

func TestCompleteDragUnknownTargetReloads(t *testing.T) {
	store := &fakeStore{
		stages: []models.Stage{stage("a", 1)},
		deals:  []models.Deal{deal("1", "a", "100")},
	}
	s, _ := newTestSynchronizer(t, store)
	listener := &recordingListener{}
	s.Subscribe(listener)
	require.NoError(t, s.Load(context.Background()))

	_, err := s.CompleteDrag(context.Background(), "1", "ghost")
	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)

	for _, b := range listener.boards {
		requireConsistent(t, b)
		_, stageID, found := b.FindDeal("1")
		assert.True(t, found, "deal vanished from version %d", b.Version)
		assert.Equal(t, "a", stageID)
	}
}

func TestPublishedBoardsAreAlwaysConsistent(t *testing.T) {
	store := &fakeStore{
		stages: []models.Stage{stage("a", 1), stage("b", 2)},
		deals:  []models.Deal{deal("1", "a", "100"), deal("2", "a", "25.5")},
	}
	s, _ := newTestSynchronizer(t, store)
	listener := &recordingListener{}
	cancel := s.Subscribe(listener)
	defer cancel()

	require.NoError(t, s.Load(context.Background()))
	_, err := s.CompleteDrag(context.Background(), "1", "b")
	require.NoError(t, err)
	_, err = s.CompleteDrag(context.Background(), "2", "b")
	require.NoError(t, err)

	require.Len(t, listener.boards, 3)
	for _, b := range listener.boards {
		requireConsistent(t, b)
		assert.Equal(t, 2, b.DealCount)
	}
	assert.Equal(t, "125.5", listener.boards[2].Stages[1].TotalValue.String())
}

func TestSnapshotIsIsolatedFromProjection(t *testing.T) {
	store := &fakeStore{
		stages: []models.Stage{stage("a", 1)},
		deals:  []models.Deal{deal("1", "a", "100")},
	}
	s, _ := newTestSynchronizer(t, store)
	require.NoError(t, s.Load(context.Background()))

	b := s.Snapshot()
	b.Stages[0].Deals[0].ClientName = "mutated"
	b.Stages[0].Deals = nil

	again := s.Snapshot()
	require.Len(t, again.Stages[0].Deals, 1)
	assert.Equal(t, "Client 1", again.Stages[0].Deals[0].ClientName)
}

func TestBeginDragUnknownDeal(t *testing.T) {
	store := &fakeStore{stages: []models.Stage{stage("a", 1)}}
	s, _ := newTestSynchronizer(t, store)
	require.NoError(t, s.Load(context.Background()))
	before := s.Snapshot()

	assert.False(t, s.BeginDrag("nope"))
	assert.Equal(t, before, s.Snapshot())
}

func TestCancelDragClearsPendingDeal(t *testing.T) {
	store := &fakeStore{
		stages: []models.Stage{stage("a", 1)},
		deals:  []models.Deal{deal("1", "a", "100")},
	}
	s, _ := newTestSynchronizer(t, store)
	require.NoError(t, s.Load(context.Background()))
	require.True(t, s.BeginDrag("1"))

	s.CancelDrag()
	assert.Nil(t, s.Snapshot().PendingDrag)
	assert.Empty(t, store.moves)
}

func TestInvalidateCoalescesBursts(t *testing.T) {
	store := &fakeStore{
		stages: []models.Stage{stage("a", 1)},
		deals:  []models.Deal{deal("1", "a", "100")},
	}
	s, _ := newTestSynchronizer(t, store)

	for i := 0; i < 5; i++ {
		s.Invalidate()
	}

	require.Eventually(t, func() bool { return s.Snapshot().Loaded }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, store.loads())
}

func TestTotalsMatchSnapshot(t *testing.T) {
	store := &fakeStore{
		stages: []models.Stage{stage("a", 1), stage("b", 2)},
		deals:  []models.Deal{deal("1", "a", "0.1"), deal("2", "b", "0.2")},
	}
	s, _ := newTestSynchronizer(t, store)
	require.NoError(t, s.Load(context.Background()))

	pipeline, margin, count := s.Totals()
	assert.Equal(t, "0.3", pipeline.String())
	assert.Equal(t, "20", margin.String())
	assert.Equal(t, 2, count)
}
