package board

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a user-facing notice (the board's toast).
type Notification struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
	DealID  string `json:"deal_id,omitempty"`
}

type Notifier interface {
	Notify(n Notification)
}

// Listener receives every projection the synchronizer publishes, in version order
// per publisher. Consumers that care about ordering across publishers compare Version.
type Listener interface {
	BoardChanged(b Board)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}
