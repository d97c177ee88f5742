package cron_feature

import (
	"time"
)

const ResyncJobName = "board-resync"

// CronJob describes a registered scheduled job
type CronJob struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Schedule    string     `json:"schedule"`
	Active      bool       `json:"active"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
}

// CronJobLog represents a single execution of a cron job
type CronJobLog struct {
	CronJobName string     `json:"cron_job_name"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Status      string     `json:"status"`  // "success", "failed"
	Trigger     string     `json:"trigger"` // "schedule", "manual"
	Error       string     `json:"error,omitempty"`
}
