// Package poller runs a task on a fixed cadence plus one-shot delayed runs,
// all of which stop for good when the poller is stopped.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xPuncker/job-watcher/internal/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Task is run on every tick. ctx is cancelled when the poller stops.
type Task func(ctx context.Context)

type Poller struct {
	logger   *logrus.Logger
	interval time.Duration
	task     Task

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timers  map[uint64]*time.Timer
	nextID  uint64
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// New builds a poller ticking every interval. Intervals under a second are
// rounded up to one second by the cron schedule.
func New(logger *logrus.Logger, interval time.Duration, task Task) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	cronLogger := cron.PrintfLogger(logger)
	return &Poller{
		logger:   logger,
		interval: interval,
		task:     task,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[uint64]*time.Timer),
	}
}

// Start schedules the repeating task. The first run happens one interval later.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return errors.New("poller already stopped")
	}
	if p.started {
		return errors.New("poller already started")
	}

	spec := fmt.Sprintf("@every %s", p.interval)
	if _, err := p.cron.AddFunc(spec, p.tick); err != nil {
		return errors.Wrapf(err, "failed to schedule %q", spec)
	}
	p.cron.Start()
	p.started = true

	p.logger.WithField("interval", p.interval.String()).Debug("Poller started")
	return nil
}

func (p *Poller) tick() {
	if !p.enter() {
		return
	}
	defer p.wg.Done()
	p.task(p.ctx)
}

// After runs fn once after delay unless the poller is stopped first.
// It reports whether fn was scheduled.
func (p *Poller) After(delay time.Duration, fn Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false
	}

	p.nextID++
	id := p.nextID
	p.timers[id] = time.AfterFunc(delay, func() {
		p.mu.Lock()
		delete(p.timers, id)
		p.mu.Unlock()

		if !p.enter() {
			return
		}
		defer p.wg.Done()
		fn(p.ctx)
	})
	return true
}

// enter registers a run unless the poller is stopped.
func (p *Poller) enter() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.wg.Add(1)
	return true
}

// Stop cancels pending runs and waits for running ones. It is safe to call
// more than once; calls after the first return immediately.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for id, timer := range p.timers {
		timer.Stop()
		delete(p.timers, id)
	}
	p.mu.Unlock()

	p.cancel()
	<-p.cron.Stop().Done()
	p.wg.Wait()

	p.logger.Debug("Poller stopped")
}

// Active reports whether the poller is started and not yet stopped.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.stopped
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}
