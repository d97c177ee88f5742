package board

import (
	"context"
	"sync"
	"time"

	"go-pipeline/internal/common/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const reloadTimeout = 30 * time.Second

// Store is the part of the deal store the synchronizer needs.
type Store interface {
	ListStages(ctx context.Context) ([]models.Stage, error)
	ListDealsWithDetails(ctx context.Context) ([]models.Deal, error)
	MoveDeal(ctx context.Context, dealID, stageID string, at time.Time) error
}

type Options struct {
	Notifier Notifier
	Logger   *zap.Logger
	// Debounce is the window in which Invalidate calls collapse into one reload.
	Debounce time.Duration
	Now      func() time.Time
}

// Synchronizer owns the in-memory projection of stages and deals. Moves are applied
// to the projection before the store write and, if the write fails, thrown away by
// rebuilding the whole projection from the store.
//
// Store I/O never runs under mu. Every mutation of the projection happens inside a
// single critical section, so a snapshot sees each deal in exactly one column and
// totals that agree with the deal lists.
type Synchronizer struct {
	store       Store
	notifier    Notifier
	logger      *zap.Logger
	now         func() time.Time
	invalidator *Invalidator

	mu           sync.Mutex
	columns      []StageColumn
	version      uint64
	loaded       bool
	pendingDrag  *models.Deal
	listeners    map[int]Listener
	nextListener int
}

func NewSynchronizer(store Store, opts Options) *Synchronizer {
	s := &Synchronizer{
		store:     store,
		notifier:  opts.Notifier,
		logger:    opts.Logger,
		now:       opts.Now,
		listeners: make(map[int]Listener),
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.invalidator = NewInvalidator(opts.Debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		_ = s.Load(ctx)
	})
	return s
}

// Subscribe registers l for every published projection.
func (s *Synchronizer) Subscribe(l Listener) (cancel func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Load rebuilds the projection from the store. The current projection stays in
// place until both fetches succeed; concurrent loads are not serialized, so the
// one that resolves last wins.
func (s *Synchronizer) Load(ctx context.Context) error {
	stages, err := s.store.ListStages(ctx)
	if err != nil {
		return s.loadFailed(err)
	}
	deals, err := s.store.ListDealsWithDetails(ctx)
	if err != nil {
		return s.loadFailed(err)
	}

	columns, orphans := buildColumns(stages, deals)
	if len(orphans) > 0 {
		s.logger.Warn("Dropping deals whose stage is not on the board", zap.Strings("deal_ids", orphans))
	}

	s.mu.Lock()
	s.columns = columns
	s.loaded = true
	s.version++
	b := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(b)
	return nil
}

func (s *Synchronizer) loadFailed(err error) error {
	s.logger.Error("Failed to load pipeline", zap.Error(err))
	s.notifier.Notify(Notification{
		Level:   LevelError,
		Title:   "Error",
		Message: "Failed to load pipeline data",
	})
	return &LoadError{Err: err}
}

// Invalidate schedules a coalesced reload. Change notifications from the store
// are treated purely as a signal to reload, never as patches.
func (s *Synchronizer) Invalidate() {
	s.invalidator.Trigger()
}

// Close stops pending reloads.
func (s *Synchronizer) Close() {
	s.invalidator.Stop()
}

// BeginDrag records the lifted deal. It returns false and changes nothing when the
// deal is not on the board.
func (s *Synchronizer) BeginDrag(dealID string) bool {
	s.mu.Lock()
	col, pos := s.findLocked(dealID)
	if col < 0 {
		s.mu.Unlock()
		return false
	}
	d := s.columns[col].Deals[pos].Clone()
	s.pendingDrag = &d
	s.version++
	b := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(b)
	return true
}

// CancelDrag drops the lifted deal without moving it.
func (s *Synchronizer) CancelDrag() {
	s.mu.Lock()
	if s.pendingDrag == nil {
		s.mu.Unlock()
		return
	}
	s.pendingDrag = nil
	s.version++
	b := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(b)
}

// move is the tentative half of a stage transition.
type move struct {
	dealID  string
	from    string
	to      string
	budget  decimal.Decimal
	applied bool // false when the target stage is not on the board
}

// CompleteDrag moves dealID to targetStageID. It reports false with a nil error
// when there was nothing to do: the deal is not on the board or already sits in
// the target stage. A rejected write yields a *PersistError after the projection
// has been rebuilt from the store.
//
// A released drag cannot be cancelled, so ctx cancellation is not propagated to
// the store write or the recovery reload.
func (s *Synchronizer) CompleteDrag(ctx context.Context, dealID, targetStageID string) (bool, error) {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	dropped := s.pendingDrag != nil
	s.pendingDrag = nil
	m, ok := s.prepareLocked(dealID, targetStageID)
	if !ok {
		if !dropped {
			s.mu.Unlock()
			return false, nil
		}
		s.version++
		b := s.snapshotLocked()
		s.mu.Unlock()
		s.publish(b)
		return false, nil
	}
	s.applyLocked(&m)
	changed := m.applied || dropped
	var b Board
	if changed {
		if !m.applied {
			s.version++
		}
		b = s.snapshotLocked()
	}
	s.mu.Unlock()

	if changed {
		s.publish(b)
	}

	if err := s.store.MoveDeal(ctx, m.dealID, m.to, s.now()); err != nil {
		return false, s.discard(ctx, m, err)
	}
	s.commit(ctx, m)
	return true, nil
}

func (s *Synchronizer) prepareLocked(dealID, targetStageID string) (move, bool) {
	col, pos := s.findLocked(dealID)
	if col < 0 {
		s.logger.Debug("Drag target deal is not on the board", zap.String("deal_id", dealID))
		return move{}, false
	}
	d := s.columns[col].Deals[pos]
	if d.StageID == targetStageID {
		return move{}, false
	}
	return move{dealID: dealID, from: d.StageID, to: targetStageID, budget: d.EstimatedBudget}, true
}

// applyLocked moves the deal between columns and adjusts both aggregates by its
// budget. When the target is not on the board nothing is applied; the write still
// goes out and its outcome decides the next projection.
func (s *Synchronizer) applyLocked(m *move) {
	col, pos := s.findLocked(m.dealID)
	to := s.columnLocked(m.to)
	if col < 0 || to < 0 {
		return
	}

	origin := &s.columns[col]
	d := origin.Deals[pos]
	remaining := make([]models.Deal, 0, len(origin.Deals)-1)
	remaining = append(remaining, origin.Deals[:pos]...)
	remaining = append(remaining, origin.Deals[pos+1:]...)
	origin.Deals = remaining
	origin.TotalValue = origin.TotalValue.Sub(m.budget)
	origin.DealCount--

	d.StageID = m.to
	target := &s.columns[to]
	target.Deals = append(target.Deals, d)
	target.TotalValue = target.TotalValue.Add(m.budget)
	target.DealCount++

	s.version++
	m.applied = true
}

func (s *Synchronizer) commit(ctx context.Context, m move) {
	s.logger.Info("Deal moved",
		zap.String("deal_id", m.dealID),
		zap.String("from_stage", m.from),
		zap.String("to_stage", m.to),
	)
	if !m.applied {
		// The store knows a stage the board does not; pick it up.
		_ = s.Load(ctx)
	}
	s.notifier.Notify(Notification{
		Level:   LevelInfo,
		Title:   "Success",
		Message: "Deal moved successfully",
		DealID:  m.dealID,
	})
}

// discard throws the tentative move away by rebuilding the whole projection. A
// local inverse patch could clobber changes that other writers landed meanwhile.
func (s *Synchronizer) discard(ctx context.Context, m move, cause error) error {
	s.logger.Error("Failed to move deal",
		zap.String("deal_id", m.dealID),
		zap.String("to_stage", m.to),
		zap.Error(cause),
	)
	_ = s.Load(ctx)
	s.notifier.Notify(Notification{
		Level:   LevelError,
		Title:   "Error",
		Message: "Failed to move deal",
		DealID:  m.dealID,
	})
	return &PersistError{DealID: m.dealID, StageID: m.to, Err: cause}
}

// Snapshot returns a deep copy of the current projection.
func (s *Synchronizer) Snapshot() Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Totals returns the header figures: pipeline value, margin and deal count.
func (s *Synchronizer) Totals() (pipeline, margin decimal.Decimal, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return summarize(s.columns)
}

func (s *Synchronizer) snapshotLocked() Board {
	b := Board{
		Version: s.version,
		Loaded:  s.loaded,
		Stages:  make([]StageColumn, len(s.columns)),
	}
	for i, c := range s.columns {
		b.Stages[i] = c.clone()
	}
	if s.pendingDrag != nil {
		d := s.pendingDrag.Clone()
		b.PendingDrag = &d
	}
	b.TotalPipeline, b.TotalMargin, b.DealCount = summarize(s.columns)
	return b
}

func (s *Synchronizer) findLocked(dealID string) (col, pos int) {
	for i, c := range s.columns {
		if j := c.indexOf(dealID); j >= 0 {
			return i, j
		}
	}
	return -1, -1
}

func (s *Synchronizer) columnLocked(stageID string) int {
	for i, c := range s.columns {
		if c.ID == stageID {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) publish(b Board) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l.BoardChanged(b)
	}
}
