package tui

import (
	"go-pipeline/internal/board"

	tea "github.com/charmbracelet/bubbletea"
)

const bridgeBuffer = 64

type boardMsg board.Board

type noticeMsg board.Notification

// Bridge carries synchronizer callbacks into the bubbletea event loop. It is both
// the board.Listener and the board.Notifier of the terminal client.
type Bridge struct {
	ch chan tea.Msg
}

func NewBridge() *Bridge {
	return &Bridge{ch: make(chan tea.Msg, bridgeBuffer)}
}

func (b *Bridge) BoardChanged(snapshot board.Board) {
	b.send(boardMsg(snapshot))
}

func (b *Bridge) Notify(n board.Notification) {
	b.send(noticeMsg(n))
}

// send never blocks the synchronizer. A dropped board is superseded by the next
// one; the model also re-reads the snapshot on every notice.
func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.ch <- msg:
	default:
	}
}

// wait returns a command that delivers the next bridged message.
func (b *Bridge) wait() tea.Cmd {
	return func() tea.Msg {
		return <-b.ch
	}
}
