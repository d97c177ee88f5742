package tui

import (
	"context"
	"time"

	"go-pipeline/internal/board"
	"go-pipeline/internal/common/models"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const ioTimeout = 30 * time.Second

// Board is the part of the synchronizer the terminal client drives.
type Board interface {
	Snapshot() board.Board
	Load(ctx context.Context) error
	BeginDrag(dealID string) bool
	CancelDrag()
	CompleteDrag(ctx context.Context, dealID, targetStageID string) (bool, error)
}

type loadDoneMsg struct{ err error }

type moveDoneMsg struct {
	moved bool
	err   error
}

// Model is the kanban screen. The cursor addresses a column and a card in it;
// while a deal is lifted, left and right pick the drop column.
type Model struct {
	board  Board
	bridge *Bridge
	keys   keyMap
	help   help.Model

	snap   board.Board
	col    int
	row    int
	lifted string
	notice *board.Notification
	busy   bool

	width  int
	height int
}

func NewModel(b Board, bridge *Bridge) Model {
	return Model{
		board:  b,
		bridge: bridge,
		keys:   defaultKeys(),
		help:   help.New(),
		snap:   b.Snapshot(),
		width:  120,
		height: 30,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.bridge.wait(), m.reload())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case boardMsg:
		m.apply(board.Board(msg))
		return m, m.bridge.wait()
	case noticeMsg:
		n := board.Notification(msg)
		m.notice = &n
		m.apply(m.board.Snapshot())
		return m, m.bridge.wait()
	case loadDoneMsg:
		m.busy = false
		m.apply(m.board.Snapshot())
		return m, nil
	case moveDoneMsg:
		m.busy = false
		m.apply(m.board.Snapshot())
		return m, nil
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Left):
		m.moveColumn(-1)
	case key.Matches(msg, m.keys.Right):
		m.moveColumn(1)
	case key.Matches(msg, m.keys.Up):
		if m.lifted == "" && m.row > 0 {
			m.row--
		}
	case key.Matches(msg, m.keys.Down):
		if m.lifted == "" && m.row < len(m.cards())-1 {
			m.row++
		}
	case key.Matches(msg, m.keys.Lift):
		return m.lift()
	case key.Matches(msg, m.keys.Drop):
		return m.drop()
	case key.Matches(msg, m.keys.Cancel):
		if m.lifted != "" {
			m.lifted = ""
			m.board.CancelDrag()
			m.apply(m.board.Snapshot())
		}
	case key.Matches(msg, m.keys.Reload):
		if !m.busy {
			m.busy = true
			return m, m.reload()
		}
	}
	return m, nil
}

func (m Model) lift() (tea.Model, tea.Cmd) {
	if m.lifted != "" || m.busy {
		return m, nil
	}
	cards := m.cards()
	if m.row >= len(cards) {
		return m, nil
	}
	id := cards[m.row].ID
	if m.board.BeginDrag(id) {
		m.lifted = id
		m.notice = nil
	}
	m.apply(m.board.Snapshot())
	return m, nil
}

func (m Model) drop() (tea.Model, tea.Cmd) {
	if m.lifted == "" || len(m.snap.Stages) == 0 {
		return m, nil
	}
	dealID, stageID := m.lifted, m.snap.Stages[m.col].ID
	m.lifted = ""
	m.busy = true
	b := m.board
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
		defer cancel()
		moved, err := b.CompleteDrag(ctx, dealID, stageID)
		return moveDoneMsg{moved: moved, err: err}
	}
}

func (m Model) reload() tea.Cmd {
	b := m.board
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
		defer cancel()
		return loadDoneMsg{err: b.Load(ctx)}
	}
}

func (m *Model) moveColumn(delta int) {
	next := m.col + delta
	if next < 0 || next >= len(m.snap.Stages) {
		return
	}
	m.col = next
	if m.lifted == "" {
		m.row = 0
	}
}

// apply takes a newer snapshot and keeps the cursor on a real card. When a deal
// is lifted the cursor follows it.
func (m *Model) apply(b board.Board) {
	if m.snap.Loaded && b.Version < m.snap.Version {
		return
	}
	m.snap = b
	if m.lifted != "" && b.PendingDrag == nil {
		m.lifted = ""
	}
	if m.col >= len(b.Stages) {
		m.col = max(len(b.Stages)-1, 0)
	}
	if m.row >= len(m.cards()) {
		m.row = max(len(m.cards())-1, 0)
	}
}

func (m Model) cards() []models.Deal {
	if m.col >= len(m.snap.Stages) {
		return nil
	}
	return m.snap.Stages[m.col].Deals
}
