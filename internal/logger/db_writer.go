package logger

import (
	"context"
	"fmt"
	"time"

	"go-pipeline/internal/common/models"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zapcore"
)

const logsCollection = "logs"

// LogEntry holds the data passed from Zap to the worker
type LogEntry struct {
	Level     zapcore.Level
	Message   string
	IpAddress string
	DealID    string
	Caller    string
}

// DBLogWriter handles the async writing
type DBLogWriter struct {
	insert  func(ctx context.Context, rec models.Log) error
	logChan chan LogEntry
	appId   string
	done    chan struct{}
}

// NewDBLogWriter starts a worker that inserts entries into the logs collection.
func NewDBLogWriter(db *mongo.Database, appId string) *DBLogWriter {
	coll := db.Collection(logsCollection)
	return newDBLogWriter(func(ctx context.Context, rec models.Log) error {
		_, err := coll.InsertOne(ctx, rec)
		return err
	}, appId)
}

func newDBLogWriter(insert func(ctx context.Context, rec models.Log) error, appId string) *DBLogWriter {
	writer := &DBLogWriter{
		insert:  insert,
		logChan: make(chan LogEntry, 1000),
		appId:   appId,
		done:    make(chan struct{}),
	}

	go writer.processLogs()

	return writer
}

// AddLog is called by the core. It never blocks the caller.
func (w *DBLogWriter) AddLog(entry LogEntry) {
	select {
	case w.logChan <- entry:
	default:
		fmt.Println("DB Log Channel Full! Dropping log:", entry.Message)
	}
}

// Close drains the queue and stops the worker.
func (w *DBLogWriter) Close() {
	close(w.logChan)
	<-w.done
}

func (w *DBLogWriter) processLogs() {
	defer close(w.done)
	for entry := range w.logChan {
		rec := models.Log{
			Message:      entry.Message,
			IpAddress:    entry.IpAddress,
			DealID:       entry.DealID,
			Caller:       entry.Caller,
			LogLevelId:   mapLevelToInt(entry.Level),
			AppId:        w.appId,
			CreatedOnUtc: time.Now().UTC(),
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		// errors are ignored to keep the app running
		_ = w.insert(ctx, rec)
		cancel()
	}
}

func mapLevelToInt(l zapcore.Level) int {
	switch l {
	case zapcore.DebugLevel:
		return 10
	case zapcore.InfoLevel:
		return 20
	case zapcore.WarnLevel:
		return 30
	case zapcore.ErrorLevel:
		return 40
	case zapcore.FatalLevel:
		return 50
	default:
		return 20
	}
}
