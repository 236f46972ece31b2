package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/0xPuncker/job-watcher/internal/errors"
	"github.com/0xPuncker/job-watcher/internal/savedsearch"
	"github.com/0xPuncker/job-watcher/internal/scheduler"
	"github.com/0xPuncker/job-watcher/internal/search"
	"github.com/0xPuncker/job-watcher/internal/session"
	"github.com/0xPuncker/job-watcher/pkg/types"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// TokenSetter accepts tokens pushed by the external auth collaborator.
type TokenSetter interface {
	Set(token string)
	Clear()
}

// HealthChecker probes the backend.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Services are the components the handler forwards intents to.
type Services struct {
	Session   session.Session
	Store     *savedsearch.Store
	Editor    *savedsearch.Editor
	Scheduler *scheduler.Controller
	Searcher  *search.Searcher
	Backend   HealthChecker
}

type Handler struct {
	logger   *logrus.Logger
	services Services
}

type RunResponse struct {
	Message      string `json:"message"`
	TotalResults int    `json:"total_results"`
	NewResults   int    `json:"new_results"`
}

type SessionRequest struct {
	Token string `json:"token"`
}

type SessionResponse struct {
	SignedIn bool `json:"signed_in"`
}

type DeleteResponse struct {
	Deleted bool   `json:"deleted"`
	Prompt  string `json:"prompt,omitempty"`
}

type ActionResponse struct {
	Message string         `json:"message"`
	View    scheduler.View `json:"scheduler"`
}

func NewHandler(logger *logrus.Logger, services Services) *Handler {
	if services.Editor == nil && services.Store != nil {
		services.Editor = savedsearch.NewEditor(services.Store)
	}
	return &Handler{
		logger:   logger,
		services: services,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "ok",
	}
	if h.services.Backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.services.Backend.Health(ctx); err != nil {
			response["backend"] = "unreachable"
		} else {
			response["backend"] = "ok"
		}
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, SessionResponse{SignedIn: h.services.Session.SignedIn()})
}

// SignIn replaces the bearer token and refreshes the saved-search list for the new user.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	setter, ok := h.services.Session.(TokenSetter)
	if !ok {
		h.writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "Session is read-only"})
		return
	}
	var req SessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Token is required"})
		return
	}

	setter.Set(req.Token)
	h.logger.Info("Session token updated")
	if err := h.services.Store.Load(r.Context()); err != nil {
		h.logger.WithError(err).Warn("Failed to load saved searches after sign-in")
	}
	h.writeJSON(w, http.StatusOK, SessionResponse{SignedIn: h.services.Session.SignedIn()})
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	setter, ok := h.services.Session.(TokenSetter)
	if !ok {
		h.writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "Session is read-only"})
		return
	}
	setter.Clear()
	h.logger.Info("Session cleared")
	h.writeJSON(w, http.StatusOK, SessionResponse{SignedIn: false})
}

// ListSearches returns the store snapshot, loading it first when it has
// never been fetched and a user is signed in.
func (h *Handler) ListSearches(w http.ResponseWriter, r *http.Request) {
	store := h.services.Store
	if !store.Loaded() && h.services.Session.SignedIn() {
		_ = store.Load(r.Context())
	}
	if r.URL.Query().Get("refresh") == "true" {
		_ = store.Load(r.Context())
	}
	h.writeJSON(w, http.StatusOK, store.Snapshot())
}

func (h *Handler) CreateSearch(w http.ResponseWriter, r *http.Request) {
	var draft types.Draft
	if !h.decode(w, r, &draft) {
		return
	}
	if err := h.services.Store.Create(r.Context(), draft); err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, h.services.Store.Snapshot())
}

func (h *Handler) GetSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.searchID(w, r)
	if !ok {
		return
	}
	search, err := h.services.Store.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, search)
}

func (h *Handler) UpdateSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.searchID(w, r)
	if !ok {
		return
	}
	var patch types.Patch
	if !h.decode(w, r, &patch) {
		return
	}
	if err := h.services.Store.Update(r.Context(), id, patch); err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.services.Store.Snapshot())
}

// DeleteSearch treats ?confirm=yes as the answer to the delete prompt.
func (h *Handler) DeleteSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.searchID(w, r)
	if !ok {
		return
	}
	answer := r.URL.Query().Get("confirm") == "yes"
	deleted, err := h.services.Store.Delete(r.Context(), id, savedsearch.ConfirmFunc(func(string) bool {
		return answer
	}))
	if err != nil {
		h.handleError(w, err)
		return
	}
	response := DeleteResponse{Deleted: deleted}
	if !deleted {
		response.Prompt = savedsearch.DeletePrompt
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) RunSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.searchID(w, r)
	if !ok {
		return
	}
	result, err := h.services.Store.RunNow(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, RunResponse{
		Message:      result.Summary(),
		TotalResults: result.TotalResults,
		NewResults:   result.NewResults,
	})
}

func (h *Handler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	id, ok := h.searchID(w, r)
	if !ok {
		return
	}
	if err := h.services.Store.MarkSeen(r.Context(), id); err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.services.Store.Snapshot())
}

func (h *Handler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.searchID(w, r)
	if !ok {
		return
	}
	if err := h.services.Store.ToggleActive(r.Context(), id); err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.services.Store.Snapshot())
}

func (h *Handler) SearchResults(w http.ResponseWriter, r *http.Request) {
	id, ok := h.searchID(w, r)
	if !ok {
		return
	}
	newOnly := r.URL.Query().Get("new_only") == "true"
	page, err := h.services.Store.Results(r.Context(), id, newOnly)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) LastRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.searchID(w, r)
	if !ok {
		return
	}
	result, found := h.services.Store.LastRun(id)
	if !found {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "No recent run"})
		return
	}
	h.writeJSON(w, http.StatusOK, RunResponse{
		Message:      result.Summary(),
		TotalResults: result.TotalResults,
		NewResults:   result.NewResults,
	})
}

func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.services.Editor.State())
}

func (h *Handler) OpenCreateForm(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Editor.OpenCreate(); err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.services.Editor.State())
}

// OpenEditForm binds the form to a record from the current list.
func (h *Handler) OpenEditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.searchID(w, r)
	if !ok {
		return
	}
	for _, item := range h.services.Store.Items() {
		if item.ID == id {
			if err := h.services.Editor.OpenEdit(item); err != nil {
				h.handleError(w, err)
				return
			}
			h.writeJSON(w, http.StatusOK, h.services.Editor.State())
			return
		}
	}
	h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Saved search not loaded"})
}

func (h *Handler) UpdateForm(w http.ResponseWriter, r *http.Request) {
	var draft types.Draft
	if !h.decode(w, r, &draft) {
		return
	}
	if err := h.services.Editor.SetDraft(draft); err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.services.Editor.State())
}

func (h *Handler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Editor.Submit(r.Context()); err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.services.Store.Snapshot())
}

func (h *Handler) CancelForm(w http.ResponseWriter, r *http.Request) {
	h.services.Editor.Cancel()
	h.writeJSON(w, http.StatusOK, h.services.Editor.State())
}

func (h *Handler) AdhocSearch(w http.ResponseWriter, r *http.Request) {
	var query types.AdhocQuery
	if !h.decode(w, r, &query) {
		return
	}
	urls, err := h.services.Searcher.Search(r.Context(), query)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": urls,
		"count":   len(urls),
	})
}

func (h *Handler) SchedulerView(w http.ResponseWriter, r *http.Request) {
	controller := h.services.Scheduler
	if controller.Status() == nil && !controller.Mounted() {
		_ = controller.Poll(r.Context())
	}
	h.writeJSON(w, http.StatusOK, controller.View())
}

func (h *Handler) SchedulerAction(w http.ResponseWriter, r *http.Request) {
	controller := h.services.Scheduler
	action := types.SchedulerAction(mux.Vars(r)["action"])

	var (
		message string
		err     error
	)
	switch action {
	case types.ActionStart:
		if err = controller.Start(r.Context()); err == nil {
			message = "Scheduler started"
		}
	case types.ActionStop:
		if err = controller.Stop(r.Context()); err == nil {
			message = "Scheduler stopped"
		}
	case types.ActionRunNow:
		message, err = controller.RunAll(r.Context())
	default:
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown scheduler action"})
		return
	}
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ActionResponse{Message: message, View: controller.View()})
}

func (h *Handler) searchID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid saved search id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return false
	}
	return true
}

// statusFor maps a failure kind to the local response code.
func statusFor(err error) int {
	var serverErr *errors.ServerError
	switch {
	case errors.Is(err, scheduler.ErrActionPending), errors.Is(err, savedsearch.ErrSubmitting):
		return http.StatusConflict
	case errors.Is(err, errors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrAuthMissing):
		return http.StatusUnauthorized
	case errors.Is(err, errors.ErrNetwork):
		return http.StatusBadGateway
	case errors.As(err, &serverErr) && serverErr.Status >= 400 && serverErr.Status < 500:
		return serverErr.Status
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	h.logger.WithFields(logrus.Fields{
		"kind":   errors.Kind(err),
		"status": code,
	}).Debug(err)
	h.writeJSON(w, code, map[string]string{
		"error": errors.Message(err),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Errorf("Failed to encode response: %v", err)
	}
}
