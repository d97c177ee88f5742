package database

import (
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ChangeChannel is the NOTIFY channel the schema triggers publish on.
const ChangeChannel = "pipeline_changes"

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// ChangeFeed delivers a signal for every committed change to deals, deal_products
// or deal_tags. Payloads carry only the table name; subscribers are expected to
// reload rather than patch.
type ChangeFeed struct {
	listener *pq.Listener
	logger   *zap.Logger
	onChange func(table string)

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewChangeFeed starts listening on ChangeChannel. onChange runs on the feed's
// goroutine; it is also called with an empty table after a reconnect, since
// notifications may have been missed while the connection was down.
func NewChangeFeed(dsn string, logger *zap.Logger, onChange func(table string)) (*ChangeFeed, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &ChangeFeed{
		logger:   logger,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	f.listener = pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval, f.event)
	if err := f.listener.Listen(ChangeChannel); err != nil {
		_ = f.listener.Close()
		return nil, err
	}

	f.wg.Add(1)
	go f.run()
	return f, nil
}

func (f *ChangeFeed) event(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		f.logger.Info("Change feed connected", zap.String("channel", ChangeChannel))
	case pq.ListenerEventDisconnected:
		f.logger.Warn("Change feed disconnected", zap.Error(err))
	case pq.ListenerEventReconnected:
		f.logger.Info("Change feed reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		f.logger.Warn("Change feed reconnect attempt failed", zap.Error(err))
	}
}

func (f *ChangeFeed) run() {
	defer f.wg.Done()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			// nil after a reconnect
			if n == nil {
				f.onChange("")
				continue
			}
			f.logger.Debug("Pipeline change", zap.String("table", n.Extra))
			f.onChange(n.Extra)
		case <-ticker.C:
			if err := f.listener.Ping(); err != nil {
				f.logger.Warn("Change feed ping failed", zap.Error(err))
			}
		}
	}
}

// Close stops the feed and waits for its goroutine to exit.
func (f *ChangeFeed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		err = f.listener.Close()
		f.wg.Wait()
	})
	return err
}
