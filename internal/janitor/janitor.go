// Package janitor runs the periodic idle-session sweep on a cron
// schedule, independent of request handling.
package janitor

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shopquery/backend/internal/service/conversation"
)

// Janitor owns the background sweep schedule.
type Janitor struct {
	sessions *conversation.Store
	maxIdle  time.Duration
	schedule string

	cron *cron.Cron
	lock sync.Mutex
}

// New creates the janitor. schedule is a five-field cron expression.
func New(sessions *conversation.Store, maxIdle time.Duration, schedule string) *Janitor {
	return &Janitor{
		sessions: sessions,
		maxIdle:  maxIdle,
		schedule: schedule,
	}
}

// Start begins the sweep schedule. Returns an error for an invalid
// schedule expression.
func (j *Janitor) Start() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	j.cron = cron.New(cron.WithParser(parser))

	_, err := j.cron.AddFunc(j.schedule, j.tick)
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", j.schedule, err)
	}

	j.cron.Start()
	log.Printf("[janitor] sweep scheduled (%s), ttl=%s", j.schedule, j.maxIdle)
	return nil
}

// Stop shuts the schedule down, waiting for an in-flight sweep.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
		log.Printf("[janitor] stopped")
	}
}

// tick runs one sweep. A tick that fires while the previous one is
// still running is skipped; TryLock is atomic, no race between check
// and acquire.
func (j *Janitor) tick() {
	if !j.lock.TryLock() {
		log.Printf("[janitor] previous sweep still running, skipping tick")
		return
	}
	defer j.lock.Unlock()

	removed := j.sessions.Sweep(j.maxIdle)
	if removed > 0 {
		log.Printf("[janitor] swept %d idle sessions", removed)
	}
}
