package cron_feature

import (
	"sync"
)

const maxLogsPerJob = 50

// CronRepository keeps the recent execution history of each job.
type CronRepository interface {
	AppendLog(entry CronJobLog)
	ListLogs(jobName string, limit int) []CronJobLog
}

type memoryCronRepository struct {
	mu   sync.Mutex
	logs map[string][]CronJobLog
}

func NewCronRepository() CronRepository {
	return &memoryCronRepository{logs: map[string][]CronJobLog{}}
}

func (r *memoryCronRepository) AppendLog(entry CronJobLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	logs := append(r.logs[entry.CronJobName], entry)
	if len(logs) > maxLogsPerJob {
		logs = logs[len(logs)-maxLogsPerJob:]
	}
	r.logs[entry.CronJobName] = logs
}

// ListLogs returns up to limit entries, newest first.
func (r *memoryCronRepository) ListLogs(jobName string, limit int) []CronJobLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	logs := r.logs[jobName]
	out := make([]CronJobLog, 0, len(logs))
	for i := len(logs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, logs[i])
	}
	return out
}
