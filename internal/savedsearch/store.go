// Package savedsearch keeps the signed-in user's saved searches in step with
// the backend. Every mutation is followed by a reload of the full list; the
// local items are never patched in place.
package savedsearch

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/0xPuncker/job-watcher/internal/errors"
	"github.com/0xPuncker/job-watcher/internal/metrics"
	"github.com/0xPuncker/job-watcher/internal/session"
	"github.com/0xPuncker/job-watcher/internal/validation"
	"github.com/0xPuncker/job-watcher/pkg/types"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRunTTL = 10 * time.Minute
	NotifyTimeout = 10 * time.Second
	DeletePrompt  = "Are you sure you want to delete this saved search?"
)

// API is the subset of the backend client the store talks to.
type API interface {
	ListSavedSearches(ctx context.Context, token string) ([]types.SavedSearch, error)
	GetSavedSearch(ctx context.Context, token string, id int64) (*types.SavedSearch, error)
	CreateSavedSearch(ctx context.Context, token string, draft types.Draft) (*types.SavedSearch, error)
	UpdateSavedSearch(ctx context.Context, token string, id int64, patch types.Patch) (*types.SavedSearch, error)
	DeleteSavedSearch(ctx context.Context, token string, id int64) error
	RunSavedSearch(ctx context.Context, token string, id int64) (*types.RunResult, error)
	MarkSeen(ctx context.Context, token string, id int64) error
	SearchResults(ctx context.Context, token string, id int64, newOnly bool) (*types.ResultsPage, error)
}

// Notifier is told when a reload shows more new results than the previous one.
type Notifier interface {
	NotifyNewResults(ctx context.Context, search types.SavedSearch, delta int) error
}

// Confirmer answers a blocking yes/no prompt.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool {
	return f(prompt)
}

// Snapshot is a copy of the store state for rendering.
type Snapshot struct {
	Items   []types.SavedSearch `json:"items"`
	Loading bool                `json:"loading"`
	Error   string              `json:"error,omitempty"`
}

type Option func(*Store)

func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		s.notifier = n
	}
}

// WithRunTTL sets how long the last run summary of a search is kept.
func WithRunTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.runTTL = ttl
	}
}

type Store struct {
	api      API
	session  session.Session
	logger   *logrus.Logger
	notifier Notifier
	runTTL   time.Duration
	runs     *cache.Cache
	notifies sync.WaitGroup

	mu        sync.RWMutex
	items     []types.SavedSearch
	loaded    bool
	inflight  int
	lastError string
}

func NewStore(api API, sess session.Session, logger *logrus.Logger, opts ...Option) *Store {
	s := &Store{
		api:     api,
		session: sess,
		logger:  logger,
		runTTL:  DefaultRunTTL,
		items:   make([]types.SavedSearch, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runs = cache.New(s.runTTL, 2*s.runTTL)
	return s
}

// Load replaces the items with the backend's list. On failure the previous
// items are kept and the error is recorded.
func (s *Store) Load(ctx context.Context) error {
	s.setError("")
	token, err := s.token("load")
	if err != nil {
		return err
	}
	err = s.resync(ctx, token)
	s.observe("load", err)
	return err
}

func (s *Store) Create(ctx context.Context, draft types.Draft) error {
	s.setError("")
	if err := validation.Draft(draft); err != nil {
		return s.fail("create", err)
	}
	return s.mutate(ctx, "create", func(token string) error {
		created, err := s.api.CreateSavedSearch(ctx, token, draft)
		if err != nil {
			return err
		}
		s.logger.WithFields(logrus.Fields{
			"id":   created.ID,
			"name": created.Name,
		}).Info("Saved search created")
		return nil
	})
}

// Update sends patch as a merge-patch: only the fields it sets change.
func (s *Store) Update(ctx context.Context, id int64, patch types.Patch) error {
	s.setError("")
	if patch == (types.Patch{}) {
		return s.fail("update", errors.Validation("Nothing to update"))
	}
	if err := validation.Patch(patch); err != nil {
		return s.fail("update", err)
	}
	return s.mutate(ctx, "update", func(token string) error {
		if _, err := s.api.UpdateSavedSearch(ctx, token, id, patch); err != nil {
			return err
		}
		s.logger.WithField("id", id).Info("Saved search updated")
		return nil
	})
}

// ToggleActive flips is_active of a loaded search.
func (s *Store) ToggleActive(ctx context.Context, id int64) error {
	current, ok := s.find(id)
	if !ok {
		return s.fail("toggle", errors.Validationf("Saved search %d is not loaded", id))
	}
	return s.Update(ctx, id, types.ActivePatch(!current.IsActive))
}

// Delete asks confirm first. A declined or missing confirmation sends
// nothing and reports false with no error.
func (s *Store) Delete(ctx context.Context, id int64, confirm Confirmer) (bool, error) {
	if confirm == nil || !confirm.Confirm(DeletePrompt) {
		s.logger.WithField("id", id).Debug("Delete not confirmed")
		metrics.StoreOperationsTotal.WithLabelValues("delete", "declined").Inc()
		return false, nil
	}

	s.setError("")
	err := s.mutate(ctx, "delete", func(token string) error {
		if err := s.api.DeleteSavedSearch(ctx, token, id); err != nil {
			return err
		}
		s.runs.Delete(runKey(id))
		s.logger.WithField("id", id).Info("Saved search deleted")
		return nil
	})
	return err == nil, err
}

// RunNow executes one search immediately, whatever its schedule or active flag.
func (s *Store) RunNow(ctx context.Context, id int64) (*types.RunResult, error) {
	s.setError("")
	var result *types.RunResult
	err := s.mutate(ctx, "run", func(token string) error {
		var err error
		result, err = s.api.RunSavedSearch(ctx, token, id)
		if err != nil {
			return err
		}
		s.runs.Set(runKey(id), *result, cache.DefaultExpiration)
		s.logger.WithFields(logrus.Fields{
			"id":            id,
			"total_results": result.TotalResults,
			"new_results":   result.NewResults,
		}).Info("Saved search ran")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) MarkSeen(ctx context.Context, id int64) error {
	s.setError("")
	return s.mutate(ctx, "mark_seen", func(token string) error {
		if err := s.api.MarkSeen(ctx, token, id); err != nil {
			return err
		}
		s.logger.WithField("id", id).Info("Saved search marked as seen")
		return nil
	})
}

// Get fetches one record. It does not touch the store state.
func (s *Store) Get(ctx context.Context, id int64) (*types.SavedSearch, error) {
	token, ok := s.session.Token()
	if !ok {
		return nil, errors.AuthMissing()
	}
	return s.api.GetSavedSearch(ctx, token, id)
}

// Results fetches the recorded URLs of one search. It does not touch the store state.
func (s *Store) Results(ctx context.Context, id int64, newOnly bool) (*types.ResultsPage, error) {
	token, ok := s.session.Token()
	if !ok {
		return nil, errors.AuthMissing()
	}
	return s.api.SearchResults(ctx, token, id, newOnly)
}

// LastRun returns the summary of the latest RunNow of id, if still retained.
func (s *Store) LastRun(id int64) (types.RunResult, bool) {
	v, ok := s.runs.Get(runKey(id))
	if !ok {
		return types.RunResult{}, false
	}
	return v.(types.RunResult), true
}

func (s *Store) Items() []types.SavedSearch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.SavedSearch, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Loaded reports whether a list has been fetched at least once.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

func (s *Store) Snapshot() Snapshot {
	items := s.Items()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Items:   items,
		Loading: s.inflight > 0,
		Error:   s.lastError,
	}
}

// mutate runs fn with the current token and reloads the list once fn has
// succeeded. A failed reload is recorded but does not fail the mutation.
func (s *Store) mutate(ctx context.Context, op string, fn func(token string) error) error {
	token, err := s.token(op)
	if err != nil {
		return err
	}
	if err := fn(token); err != nil {
		return s.fail(op, err)
	}
	s.observe(op, nil)

	if err := s.resync(ctx, token); err != nil {
		s.logger.WithFields(logrus.Fields{
			"operation": op,
			"error":     err.Error(),
		}).Warn("Resync after mutation failed")
	}
	return nil
}

func (s *Store) resync(ctx context.Context, token string) error {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()

	list, err := s.api.ListSavedSearches(ctx, token)

	s.mu.Lock()
	s.inflight--
	if err != nil {
		s.lastError = errors.Message(err)
		s.mu.Unlock()
		s.logFailure("load", err)
		return err
	}
	previous := s.items
	first := !s.loaded
	s.items = list
	s.loaded = true
	s.mu.Unlock()

	s.logger.WithField("count", len(list)).Debug("Saved searches loaded")

	if !first && s.notifier != nil {
		s.notifyGrowth(ctx, previous, list)
	}
	return nil
}

// notifyGrowth sends one notification per search whose new-results count
// grew. Sending happens off the caller's path; see Wait.
func (s *Store) notifyGrowth(ctx context.Context, previous, current []types.SavedSearch) {
	before := make(map[int64]int, len(previous))
	for _, search := range previous {
		before[search.ID] = search.NewResultsCount
	}

	type growth struct {
		search types.SavedSearch
		delta  int
	}
	var grown []growth
	for _, search := range current {
		if delta := search.NewResultsCount - before[search.ID]; delta > 0 {
			grown = append(grown, growth{search: search, delta: delta})
		}
	}
	if len(grown) == 0 {
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), NotifyTimeout)
	s.notifies.Add(1)
	go func() {
		defer s.notifies.Done()
		defer cancel()
		for _, g := range grown {
			if err := s.notifier.NotifyNewResults(sendCtx, g.search, g.delta); err != nil {
				s.logger.WithFields(logrus.Fields{
					"id":    g.search.ID,
					"error": err.Error(),
				}).Warn("Failed to send new results notification")
			}
		}
	}()
}

// Wait blocks until every dispatched new-results notification has finished.
func (s *Store) Wait() {
	s.notifies.Wait()
}

func (s *Store) token(op string) (string, error) {
	token, ok := s.session.Token()
	if !ok {
		return "", s.fail(op, errors.AuthMissing())
	}
	return token, nil
}

func (s *Store) find(id int64) (types.SavedSearch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, search := range s.items {
		if search.ID == id {
			return search, true
		}
	}
	return types.SavedSearch{}, false
}

func (s *Store) fail(op string, err error) error {
	s.setError(errors.Message(err))
	s.observe(op, err)
	s.logFailure(op, err)
	return err
}

func (s *Store) logFailure(op string, err error) {
	entry := s.logger.WithFields(logrus.Fields{
		"operation": op,
		"kind":      errors.Kind(err),
		"error":     err.Error(),
	})
	if errors.Is(err, errors.ErrNetwork) {
		entry.Error("Saved search operation failed")
		return
	}
	entry.Warn("Saved search operation failed")
}

func (s *Store) observe(op string, err error) {
	metrics.StoreOperationsTotal.WithLabelValues(op, errors.Kind(err)).Inc()
}

func (s *Store) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

func runKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
