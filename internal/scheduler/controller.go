// Package scheduler polls the backend scheduler and forwards start, stop and
// run-now actions, one at a time.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/0xPuncker/job-watcher/internal/errors"
	"github.com/0xPuncker/job-watcher/internal/metrics"
	"github.com/0xPuncker/job-watcher/internal/poller"
	"github.com/0xPuncker/job-watcher/internal/session"
	"github.com/0xPuncker/job-watcher/pkg/calendar"
	"github.com/0xPuncker/job-watcher/pkg/types"
	"github.com/0xPuncker/job-watcher/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	DefaultInterval    = 30 * time.Second
	DefaultSettleDelay = time.Second

	triggerManual   = "manual"
	triggerTick     = "tick"
	triggerMount    = "mount"
	triggerFollowUp = "follow_up"
)

// ErrActionPending is returned, marked as a validation failure, while another
// action awaits its response.
var ErrActionPending = errors.New("Another scheduler action is in progress")

type API interface {
	SchedulerStatus(ctx context.Context, token string) (*types.SchedulerStatus, error)
	SchedulerAction(ctx context.Context, token string, action types.SchedulerAction) (*types.Ack, error)
}

// ActionNotifier is told about every settled scheduler action.
type ActionNotifier interface {
	NotifySchedulerAction(ctx context.Context, action types.SchedulerAction, message string, err error) error
}

type Option func(*Controller)

func WithActionNotifier(n ActionNotifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithSettleDelay sets the wait between a successful action and its follow-up poll.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.settleDelay = d
		}
	}
}

type Controller struct {
	api         API
	session     session.Session
	logger      *logrus.Logger
	interval    time.Duration
	settleDelay time.Duration
	notifier    ActionNotifier

	mu         sync.Mutex
	status     *types.SchedulerStatus
	polling    int
	lastError  string
	pending    types.SchedulerAction
	poller     *poller.Poller
	tornDown   bool
	generation uint64
}

func NewController(api API, sess session.Session, logger *logrus.Logger, opts ...Option) *Controller {
	c := &Controller{
		api:         api,
		session:     sess,
		logger:      logger,
		interval:    DefaultInterval,
		settleDelay: DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mount polls once right away and then on every interval until Unmount.
func (c *Controller) Mount() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poller != nil {
		return errors.New("scheduler panel already mounted")
	}

	p := poller.New(c.logger, c.interval, func(ctx context.Context) {
		_ = c.poll(ctx, triggerTick)
	})
	if err := p.Start(); err != nil {
		return errors.Wrap(err, "failed to start scheduler polling")
	}
	p.After(0, func(ctx context.Context) {
		_ = c.poll(ctx, triggerMount)
	})

	c.poller = p
	c.tornDown = false
	c.logger.WithField("interval", c.interval.String()).Info("Scheduler panel mounted")
	return nil
}

// Unmount stops polling. No poll starts afterwards and responses of polls
// already in flight are discarded.
func (c *Controller) Unmount() {
	c.mu.Lock()
	p := c.poller
	c.poller = nil
	c.tornDown = true
	c.generation++
	c.mu.Unlock()

	if p != nil {
		p.Stop()
		c.logger.Info("Scheduler panel unmounted")
	}
}

func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poller != nil
}

// Poll fetches the status now, whatever else is in flight.
func (c *Controller) Poll(ctx context.Context) error {
	c.mu.Lock()
	c.lastError = ""
	c.mu.Unlock()
	return c.poll(ctx, triggerManual)
}

func (c *Controller) poll(ctx context.Context, trigger string) error {
	c.mu.Lock()
	if trigger != triggerManual && c.tornDown {
		c.mu.Unlock()
		metrics.SchedulerPollsTotal.WithLabelValues("discarded").Inc()
		return nil
	}
	if trigger == triggerTick && c.polling > 0 {
		c.mu.Unlock()
		metrics.SchedulerPollsTotal.WithLabelValues("skipped").Inc()
		c.logger.Debug("Scheduler poll still in flight, skipping tick")
		return nil
	}
	token, ok := c.session.Token()
	if !ok {
		err := errors.AuthMissing()
		c.lastError = errors.Message(err)
		c.mu.Unlock()
		metrics.SchedulerPollsTotal.WithLabelValues("failed").Inc()
		return err
	}
	c.polling++
	generation := c.generation
	c.mu.Unlock()

	status, err := c.api.SchedulerStatus(ctx, token)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.polling--

	if generation != c.generation {
		metrics.SchedulerPollsTotal.WithLabelValues("discarded").Inc()
		return nil
	}
	if err != nil {
		c.lastError = errors.Message(err)
		metrics.SchedulerPollsTotal.WithLabelValues("failed").Inc()
		c.logger.WithFields(logrus.Fields{
			"trigger": trigger,
			"kind":    errors.Kind(err),
			"error":   err.Error(),
		}).Warn("Scheduler status poll failed")
		return err
	}

	c.status = status
	metrics.SchedulerPollsTotal.WithLabelValues("ok").Inc()
	c.logger.WithFields(logrus.Fields{
		"trigger":    trigger,
		"running":    status.Running,
		"jobs_count": status.JobsCount,
	}).Debug("Scheduler status polled")
	return nil
}

func (c *Controller) Start(ctx context.Context) error {
	_, err := c.act(ctx, types.ActionStart)
	return err
}

func (c *Controller) Stop(ctx context.Context) error {
	_, err := c.act(ctx, types.ActionStop)
	return err
}

// RunAll asks the backend to execute every active search now and returns
// its summary message.
func (c *Controller) RunAll(ctx context.Context) (string, error) {
	return c.act(ctx, types.ActionRunNow)
}

func (c *Controller) act(ctx context.Context, action types.SchedulerAction) (string, error) {
	c.mu.Lock()
	if c.pending != "" {
		pending := c.pending
		c.mu.Unlock()
		c.logger.WithFields(logrus.Fields{
			"action":  action,
			"pending": pending,
		}).Debug("Scheduler action rejected")
		return "", errors.Mark(ErrActionPending, errors.ErrValidation)
	}
	token, ok := c.session.Token()
	if !ok {
		err := errors.AuthMissing()
		c.lastError = errors.Message(err)
		c.mu.Unlock()
		return "", err
	}
	c.pending = action
	c.lastError = ""
	c.mu.Unlock()

	ack, err := c.api.SchedulerAction(ctx, token, action)

	c.mu.Lock()
	c.pending = ""
	if err != nil {
		c.lastError = errors.Message(err)
		c.mu.Unlock()
		c.logger.WithFields(logrus.Fields{
			"action": action,
			"kind":   errors.Kind(err),
			"error":  err.Error(),
		}).Warn("Scheduler action failed")
		c.notify(ctx, action, "", err)
		return "", err
	}
	c.mu.Unlock()

	c.logger.WithField("action", action).Info("Scheduler action completed")
	c.followUp()

	message := ack.Message
	if message == "" {
		message = defaultMessage(action)
	}
	c.notify(ctx, action, message, nil)
	return message, nil
}

func (c *Controller) notify(ctx context.Context, action types.SchedulerAction, message string, actionErr error) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.NotifySchedulerAction(ctx, action, message, actionErr); err != nil {
		c.logger.WithFields(logrus.Fields{
			"action": action,
			"error":  err.Error(),
		}).Warn("Failed to send scheduler notification")
	}
}

// followUp schedules one poll after the settle delay.
func (c *Controller) followUp() {
	c.mu.Lock()
	p, tornDown := c.poller, c.tornDown
	c.mu.Unlock()

	if tornDown {
		return
	}
	task := func(ctx context.Context) {
		_ = c.poll(ctx, triggerFollowUp)
	}
	if p != nil && p.After(c.settleDelay, task) {
		return
	}
	time.AfterFunc(c.settleDelay, func() {
		task(context.Background())
	})
}

func defaultMessage(action types.SchedulerAction) string {
	switch action {
	case types.ActionStart:
		return "Scheduler started"
	case types.ActionStop:
		return "Scheduler stopped"
	default:
		return "Scheduled searches triggered"
	}
}

// Status returns a copy of the last successfully polled snapshot, or nil.
func (c *Controller) Status() *types.SchedulerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == nil {
		return nil
	}
	status := *c.status
	return &status
}

// Pending returns the action in flight, or "" when idle.
func (c *Controller) Pending() types.SchedulerAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Controller) Polling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polling > 0
}

func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// View is the scheduler panel as rendered.
type View struct {
	Loaded    bool   `json:"loaded"`
	Status    string `json:"status"`
	Running   bool   `json:"running"`
	JobsCount int    `json:"jobs_count"`
	NextRun   string `json:"next_run,omitempty"`
	NextRunIn string `json:"next_run_in,omitempty"`
	Calendar  string `json:"calendar_url,omitempty"`
	Pending   string `json:"pending"`
	Polling   bool   `json:"polling"`
	Error     string `json:"error,omitempty"`
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := View{
		Status:  "unknown",
		Pending: c.pending.Progress(),
		Polling: c.polling > 0,
		Error:   c.lastError,
	}
	if c.status == nil {
		return view
	}

	view.Loaded = true
	view.Status = utils.StatusLabel(c.status.Running)
	view.Running = c.status.Running
	view.JobsCount = c.status.JobsCount
	if c.status.Running && c.status.NextRun != nil && !c.status.NextRun.IsZero() {
		view.NextRun = utils.FormatTimestamp(c.status.NextRun, time.Local)
		view.NextRunIn = utils.FormatDuration(time.Until(c.status.NextRun.Time))
		if link, err := calendar.NextRunURL(c.status); err == nil {
			view.Calendar = link
		}
	}
	return view
}
