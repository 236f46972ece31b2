// Package testutil provides an in-memory job-search backend for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/0xPuncker/job-watcher/pkg/types"
	"github.com/gorilla/mux"
)

// Route keys accepted by Calls, FailNext, Hold and LastBody.
const (
	RouteList      = "GET /saved-searches/"
	RouteCreate    = "POST /saved-searches/"
	RouteGet       = "GET /saved-searches/{id}"
	RouteUpdate    = "PUT /saved-searches/{id}"
	RouteDelete    = "DELETE /saved-searches/{id}"
	RouteRun       = "POST /saved-searches/{id}/run"
	RouteMarkSeen  = "POST /saved-searches/{id}/mark-seen"
	RouteResults   = "GET /saved-searches/{id}/results"
	RouteStatus    = "GET /admin/scheduler/status"
	RouteStart     = "POST /admin/scheduler/start"
	RouteStop      = "POST /admin/scheduler/stop"
	RouteRunNow    = "POST /admin/scheduler/run-now"
	RouteSearch    = "POST /search"
	RouteHealth    = "GET /health"
	DefaultToken   = "test-token"
	pythonDateTime = "2006-01-02 15:04:05.000000"
)

type failure struct {
	status int
	body   string
}

// FakeBackend mimics the saved-search and scheduler endpoints.
type FakeBackend struct {
	Server *httptest.Server
	Token  string

	mu         sync.Mutex
	nextID     int64
	clock      time.Time
	searches   map[int64]*types.SavedSearch
	results    map[int64][]types.SearchResult
	runResults map[int64]types.RunResult
	scheduler  types.SchedulerStatus
	calls      map[string]int
	bodies     map[string][]byte
	failures   map[string][]failure
	gates      map[string]chan struct{}
}

func NewFakeBackend() *FakeBackend {
	fb := &FakeBackend{
		Token:      DefaultToken,
		clock:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		searches:   make(map[int64]*types.SavedSearch),
		results:    make(map[int64][]types.SearchResult),
		runResults: make(map[int64]types.RunResult),
		calls:      make(map[string]int),
		bodies:     make(map[string][]byte),
		failures:   make(map[string][]failure),
		gates:      make(map[string]chan struct{}),
	}

	router := mux.NewRouter()
	router.Use(fb.middleware)

	router.HandleFunc("/saved-searches/", fb.list).Methods(http.MethodGet)
	router.HandleFunc("/saved-searches/", fb.create).Methods(http.MethodPost)
	router.HandleFunc("/saved-searches/{id}", fb.get).Methods(http.MethodGet)
	router.HandleFunc("/saved-searches/{id}", fb.update).Methods(http.MethodPut)
	router.HandleFunc("/saved-searches/{id}", fb.delete).Methods(http.MethodDelete)
	router.HandleFunc("/saved-searches/{id}/run", fb.run).Methods(http.MethodPost)
	router.HandleFunc("/saved-searches/{id}/mark-seen", fb.markSeen).Methods(http.MethodPost)
	router.HandleFunc("/saved-searches/{id}/results", fb.searchResults).Methods(http.MethodGet)
	router.HandleFunc("/admin/scheduler/status", fb.status).Methods(http.MethodGet)
	router.HandleFunc("/admin/scheduler/start", fb.start).Methods(http.MethodPost)
	router.HandleFunc("/admin/scheduler/stop", fb.stop).Methods(http.MethodPost)
	router.HandleFunc("/admin/scheduler/run-now", fb.runNow).Methods(http.MethodPost)
	router.HandleFunc("/search", fb.search).Methods(http.MethodPost)
	router.HandleFunc("/health", fb.health).Methods(http.MethodGet)

	fb.Server = httptest.NewServer(router)
	return fb
}

func (fb *FakeBackend) URL() string {
	return fb.Server.URL
}

// Close releases held requests and shuts the server down.
func (fb *FakeBackend) Close() {
	fb.mu.Lock()
	for key, gate := range fb.gates {
		close(gate)
		delete(fb.gates, key)
	}
	fb.mu.Unlock()
	fb.Server.Close()
}

// Seed inserts a saved search directly. Later seeds are newer.
func (fb *FakeBackend) Seed(draft types.Draft) types.SavedSearch {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return *fb.insert(draft)
}

func (fb *FakeBackend) Search(id int64) (types.SavedSearch, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	s, ok := fb.searches[id]
	if !ok {
		return types.SavedSearch{}, false
	}
	return *s, true
}

func (fb *FakeBackend) Len() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.searches)
}

// SetRunResult fixes the counts returned by the next runs of id.
func (fb *FakeBackend) SetRunResult(id int64, result types.RunResult) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.runResults[id] = result
}

func (fb *FakeBackend) SetScheduler(status types.SchedulerStatus) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.scheduler = status
}

func (fb *FakeBackend) Calls(route string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[route]
}

// TotalCalls counts every request received.
func (fb *FakeBackend) TotalCalls() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	total := 0
	for _, n := range fb.calls {
		total += n
	}
	return total
}

// LastBody returns the body of the latest request to route.
func (fb *FakeBackend) LastBody(route string) []byte {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.bodies[route]
}

// FailNext makes the next request to route answer status with body.
func (fb *FakeBackend) FailNext(route string, status int, body string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.failures[route] = append(fb.failures[route], failure{status: status, body: body})
}

// Hold blocks requests to route until the returned func is called.
func (fb *FakeBackend) Hold(route string) func() {
	gate := make(chan struct{})
	fb.mu.Lock()
	fb.gates[route] = gate
	fb.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			fb.mu.Lock()
			if fb.gates[route] == gate {
				delete(fb.gates, route)
				close(gate)
			}
			fb.mu.Unlock()
		})
	}
}

func (fb *FakeBackend) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		template := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if t, err := route.GetPathTemplate(); err == nil {
				template = t
			}
		}
		key := r.Method + " " + template

		var body []byte
		if r.Body != nil {
			body, _ = readAll(r)
		}

		fb.mu.Lock()
		fb.calls[key]++
		fb.bodies[key] = body
		gate := fb.gates[key]
		var fail *failure
		if queued := fb.failures[key]; len(queued) > 0 {
			fail = &queued[0]
			fb.failures[key] = queued[1:]
		}
		fb.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}

		if fail != nil {
			w.WriteHeader(fail.status)
			_, _ = w.Write([]byte(fail.body))
			return
		}

		if key != RouteSearch && key != RouteHealth && r.Header.Get("Authorization") != "Bearer "+fb.Token {
			writeJSON(w, http.StatusUnauthorized, detail("Not authenticated"))
			return
		}

		r.Body = newBody(body)
		next.ServeHTTP(w, r)
	})
}

func (fb *FakeBackend) insert(draft types.Draft) *types.SavedSearch {
	fb.nextID++
	fb.clock = fb.clock.Add(time.Minute)
	search := &types.SavedSearch{
		ID:              fb.nextID,
		Name:            draft.Name,
		JobTitle:        draft.JobTitle,
		ExperienceLevel: draft.ExperienceLevel,
		Count:           draft.Count,
		IsActive:        true,
		CreatedAt:       types.NewTimestamp(fb.clock),
	}
	if draft.NotificationEmail != "" {
		email := draft.NotificationEmail
		search.NotificationEmail = &email
	}
	fb.searches[search.ID] = search
	return search
}

func (fb *FakeBackend) lookup(w http.ResponseWriter, r *http.Request) (*types.SavedSearch, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, detail("Saved search not found"))
		return nil, false
	}
	search, ok := fb.searches[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, detail("Saved search not found"))
		return nil, false
	}
	return search, true
}

func (fb *FakeBackend) list(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	out := make([]types.SavedSearch, 0, len(fb.searches))
	for _, s := range fb.searches {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt.Time)
	})
	writeJSON(w, http.StatusOK, out)
}

func (fb *FakeBackend) create(w http.ResponseWriter, r *http.Request) {
	var draft types.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, validationDetail("body", "invalid JSON body"))
		return
	}
	if msg := checkDraft(draft); msg != "" {
		writeJSON(w, http.StatusUnprocessableEntity, validationDetail("body", msg))
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	writeJSON(w, http.StatusOK, fb.insert(draft))
}

func (fb *FakeBackend) get(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if search, ok := fb.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, search)
	}
}

var editable = map[string]bool{
	"name":               true,
	"job_title":          true,
	"experience_level":   true,
	"count":              true,
	"is_active":          true,
	"notification_email": true,
}

func (fb *FakeBackend) update(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, validationDetail("body", "invalid JSON body"))
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	search, ok := fb.lookup(w, r)
	if !ok {
		return
	}

	current, _ := json.Marshal(search)
	merged := make(map[string]json.RawMessage)
	_ = json.Unmarshal(current, &merged)
	for key, value := range patch {
		if editable[key] {
			merged[key] = value
		}
	}

	raw, _ := json.Marshal(merged)
	var updated types.SavedSearch
	if err := json.Unmarshal(raw, &updated); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, validationDetail("body", err.Error()))
		return
	}
	if msg := checkDraft(types.DraftFrom(updated)); msg != "" {
		writeJSON(w, http.StatusUnprocessableEntity, validationDetail("body", msg))
		return
	}
	if updated.Email() == "" {
		updated.NotificationEmail = nil
	}

	*search = updated
	writeJSON(w, http.StatusOK, search)
}

func (fb *FakeBackend) delete(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	search, ok := fb.lookup(w, r)
	if !ok {
		return
	}
	delete(fb.searches, search.ID)
	delete(fb.results, search.ID)
	writeJSON(w, http.StatusOK, types.Ack{Message: "Saved search deleted"})
}

func (fb *FakeBackend) run(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	search, ok := fb.lookup(w, r)
	if !ok {
		return
	}

	result := fb.runResults[search.ID]
	fb.clock = fb.clock.Add(time.Minute)
	for i := 0; i < result.NewResults; i++ {
		fb.results[search.ID] = append(fb.results[search.ID], types.SearchResult{
			ID:      int64(len(fb.results[search.ID]) + 1),
			URL:     fmt.Sprintf("https://jobs.example/%d/%d", search.ID, len(fb.results[search.ID])+1),
			FoundAt: types.NewTimestamp(fb.clock),
			IsNew:   true,
		})
	}
	search.NewResultsCount += result.NewResults
	ran := types.NewTimestamp(fb.clock)
	search.LastRunAt = &ran

	writeJSON(w, http.StatusOK, types.RunResult{
		Message:      "Search completed",
		TotalResults: result.TotalResults,
		NewResults:   result.NewResults,
	})
}

func (fb *FakeBackend) markSeen(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	search, ok := fb.lookup(w, r)
	if !ok {
		return
	}
	search.NewResultsCount = 0
	for i := range fb.results[search.ID] {
		fb.results[search.ID][i].IsNew = false
	}
	writeJSON(w, http.StatusOK, types.Ack{Message: "Results marked as seen"})
}

func (fb *FakeBackend) searchResults(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	search, ok := fb.lookup(w, r)
	if !ok {
		return
	}
	newOnly := r.URL.Query().Get("new_only") == "true"
	out := make([]types.SearchResult, 0)
	for _, res := range fb.results[search.ID] {
		if newOnly && !res.IsNew {
			continue
		}
		out = append(out, res)
	}
	writeJSON(w, http.StatusOK, types.ResultsPage{
		SearchName:   search.Name,
		TotalResults: len(out),
		Results:      out,
	})
}

// status renders next_run the way the backend does: a Python datetime string.
func (fb *FakeBackend) status(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	body := map[string]interface{}{
		"running":    fb.scheduler.Running,
		"next_run":   nil,
		"jobs_count": fb.scheduler.JobsCount,
	}
	if fb.scheduler.NextRun != nil {
		body["next_run"] = fb.scheduler.NextRun.UTC().Format(pythonDateTime) + "+00:00"
	}
	writeJSON(w, http.StatusOK, body)
}

func (fb *FakeBackend) activeCount() int {
	n := 0
	for _, s := range fb.searches {
		if s.IsActive {
			n++
		}
	}
	return n
}

func (fb *FakeBackend) start(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	next := types.NewTimestamp(fb.clock.Add(time.Hour))
	fb.scheduler = types.SchedulerStatus{Running: true, NextRun: &next, JobsCount: fb.activeCount()}
	writeJSON(w, http.StatusOK, types.Ack{Message: "Scheduler started"})
}

func (fb *FakeBackend) stop(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.scheduler = types.SchedulerStatus{Running: false, JobsCount: fb.scheduler.JobsCount}
	writeJSON(w, http.StatusOK, types.Ack{Message: "Scheduler stopped"})
}

func (fb *FakeBackend) runNow(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	writeJSON(w, http.StatusOK, types.Ack{Message: fmt.Sprintf("Triggered %d searches", fb.activeCount())})
}

func (fb *FakeBackend) search(w http.ResponseWriter, r *http.Request) {
	var query types.AdhocQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, validationDetail("body", "invalid JSON body"))
		return
	}
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(query.Text)), " ", "-")
	urls := make([]string, 0, query.Count)
	for i := 1; i <= query.Count; i++ {
		urls = append(urls, fmt.Sprintf("https://jobs.example/%s/%d", slug, i))
	}
	writeJSON(w, http.StatusOK, urls)
}

func (fb *FakeBackend) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func checkDraft(d types.Draft) string {
	switch {
	case d.Name == "" || d.JobTitle == "":
		return "field required"
	case !d.ExperienceLevel.Valid():
		return "invalid experience level"
	case d.Count < types.MinCount || d.Count > types.MaxCount:
		return "ensure count is between 1 and 100"
	}
	return ""
}

func detail(msg string) map[string]string {
	return map[string]string{"detail": msg}
}

func validationDetail(loc, msg string) map[string]interface{} {
	return map[string]interface{}{
		"detail": []map[string]interface{}{
			{"loc": []string{loc}, "msg": msg, "type": "value_error"},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
