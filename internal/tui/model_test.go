package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-pipeline/internal/board"
	"go-pipeline/internal/common/models"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu      sync.Mutex
	deals   []models.Deal
	moveErr error
	moves   []string
}

func (f *fakeStore) ListStages(ctx context.Context) ([]models.Stage, error) {
	return []models.Stage{
		{ID: "lead", Name: "Lead", OrderIndex: 0},
		{ID: "won", Name: "Won", OrderIndex: 1},
	}, nil
}

func (f *fakeStore) ListDealsWithDetails(ctx context.Context) ([]models.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Deal, len(f.deals))
	for i, d := range f.deals {
		out[i] = d.Clone()
	}
	return out, nil
}

func (f *fakeStore) MoveDeal(ctx context.Context, dealID, stageID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, dealID+"->"+stageID)
	if f.moveErr != nil {
		return f.moveErr
	}
	for i := range f.deals {
		if f.deals[i].ID == dealID {
			f.deals[i].StageID = stageID
		}
	}
	return nil
}

func setup(t *testing.T) (Model, *fakeStore, *board.Synchronizer) {
	t.Helper()
	store := &fakeStore{deals: []models.Deal{
		{ID: "d1", StageID: "lead", ClientName: "Acme", ClientInitials: "AC", EstimatedBudget: decimal.NewFromInt(100)},
		{ID: "d2", StageID: "lead", ClientName: "Beta", ClientInitials: "BE", EstimatedBudget: decimal.NewFromInt(40)},
	}}
	bridge := NewBridge()
	s := board.NewSynchronizer(store, board.Options{Notifier: bridge, Logger: zap.NewNop()})
	t.Cleanup(s.Close)
	s.Subscribe(bridge)
	require.NoError(t, s.Load(context.Background()))
	return NewModel(s, bridge), store, s
}

func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

var (
	keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyRight = tea.KeyMsg{Type: tea.KeyRight}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
)

func TestDragAndDropMovesDeal(t *testing.T) {
	m, store, s := setup(t)

	m, _ = press(t, m, keyDown)
	m, _ = press(t, m, keySpace)
	assert.Equal(t, "d2", m.lifted)
	require.NotNil(t, m.snap.PendingDrag)

	m, _ = press(t, m, keyRight)
	assert.Equal(t, 1, m.col)

	m, cmd := press(t, m, keyEnter)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)

	done := cmd().(moveDoneMsg)
	require.NoError(t, done.err)
	assert.True(t, done.moved)
	m, _ = update(t, m, done)

	assert.False(t, m.busy)
	assert.Equal(t, []string{"d2->won"}, store.moves)
	won, ok := s.Snapshot().Column("won")
	require.True(t, ok)
	assert.Equal(t, 1, won.DealCount)
	assert.Equal(t, 1, m.snap.Stages[1].DealCount)
	assert.Contains(t, m.View(), "Beta")
}

func TestCancelDragLeavesBoardUntouched(t *testing.T) {
	m, store, _ := setup(t)

	m, _ = press(t, m, keySpace)
	require.Equal(t, "d1", m.lifted)
	m, _ = press(t, m, keyRight)
	m, _ = press(t, m, keyEsc)

	assert.Empty(t, m.lifted)
	assert.Nil(t, m.snap.PendingDrag)
	assert.Empty(t, store.moves)
	assert.Equal(t, 2, m.snap.Stages[0].DealCount)
}

func TestFailedDropShowsErrorNotice(t *testing.T) {
	m, store, _ := setup(t)
	store.moveErr = errors.New("connection refused")

	m, _ = press(t, m, keySpace)
	m, _ = press(t, m, keyRight)
	_, cmd := press(t, m, keyEnter)
	done := cmd().(moveDoneMsg)

	var pe *board.PersistError
	require.ErrorAs(t, done.err, &pe)

	// drain the bridge until the error notice arrives
	var notice *noticeMsg
	for notice == nil {
		msg := m.bridge.wait()()
		if n, ok := msg.(noticeMsg); ok {
			notice = &n
			m, _ = update(t, m, n)
		}
	}
	assert.Equal(t, board.LevelError, notice.Level)
	assert.Contains(t, m.View(), "Failed to move deal")
	assert.Equal(t, 2, m.snap.Stages[0].DealCount)
}

func TestStaleBoardIgnored(t *testing.T) {
	m, _, s := setup(t)
	current := s.Snapshot()

	stale := current
	stale.Version = current.Version - 1
	stale.DealCount = 99
	m, _ = update(t, m, boardMsg(stale))

	assert.Equal(t, current.DealCount, m.snap.DealCount)
}

func TestViewShowsTotals(t *testing.T) {
	m, _, _ := setup(t)

	out := m.View()
	assert.Contains(t, out, "Pipeline $140.00")
	assert.Contains(t, out, "2 deals")
	assert.Contains(t, out, "Lead")
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}
