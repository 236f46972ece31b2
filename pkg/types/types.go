package types

import "fmt"

// ExperienceLevel is the seniority bucket a saved search targets.
type ExperienceLevel string

const (
	LevelIntern    ExperienceLevel = "intern"
	LevelNewGrad   ExperienceLevel = "new grad"
	LevelAssociate ExperienceLevel = "associate level"
	LevelSenior    ExperienceLevel = "senior level"
	LevelManager   ExperienceLevel = "manager"
)

// ExperienceLevels lists every accepted level in display order.
var ExperienceLevels = []ExperienceLevel{
	LevelIntern,
	LevelNewGrad,
	LevelAssociate,
	LevelSenior,
	LevelManager,
}

func (l ExperienceLevel) Valid() bool {
	for _, level := range ExperienceLevels {
		if l == level {
			return true
		}
	}
	return false
}

const (
	MinCount     = 1
	MaxCount     = 100
	DefaultCount = 25
)

// SavedSearch is a recurring query owned by the signed-in user.
type SavedSearch struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	JobTitle          string          `json:"job_title"`
	ExperienceLevel   ExperienceLevel `json:"experience_level"`
	Count             int             `json:"count"`
	IsActive          bool            `json:"is_active"`
	NotificationEmail *string         `json:"notification_email,omitempty"`
	LastRunAt         *Timestamp      `json:"last_run_at,omitempty"`
	CreatedAt         Timestamp       `json:"created_at"`
	NewResultsCount   int             `json:"new_results_count"`
}

// Email returns the notification address or an empty string.
func (s SavedSearch) Email() string {
	if s.NotificationEmail == nil {
		return ""
	}
	return *s.NotificationEmail
}

// Draft is the body sent when creating a saved search.
type Draft struct {
	Name              string          `json:"name" yaml:"name" validate:"required"`
	JobTitle          string          `json:"job_title" yaml:"job_title" validate:"required"`
	ExperienceLevel   ExperienceLevel `json:"experience_level" yaml:"experience_level" validate:"required,experience_level"`
	Count             int             `json:"count" yaml:"count" validate:"min=1,max=100"`
	NotificationEmail string          `json:"notification_email,omitempty" yaml:"notification_email"`
}

// DefaultDraft is the blank form state.
func DefaultDraft() Draft {
	return Draft{Count: DefaultCount}
}

// DraftFrom copies the editable fields of an existing record.
func DraftFrom(s SavedSearch) Draft {
	return Draft{
		Name:              s.Name,
		JobTitle:          s.JobTitle,
		ExperienceLevel:   s.ExperienceLevel,
		Count:             s.Count,
		NotificationEmail: s.Email(),
	}
}

// Patch is a merge-patch: nil fields are left untouched by the backend.
type Patch struct {
	Name              *string          `json:"name,omitempty" validate:"omitempty,min=1"`
	JobTitle          *string          `json:"job_title,omitempty" validate:"omitempty,min=1"`
	ExperienceLevel   *ExperienceLevel `json:"experience_level,omitempty" validate:"omitempty,experience_level"`
	Count             *int             `json:"count,omitempty" validate:"omitempty,min=1,max=100"`
	IsActive          *bool            `json:"is_active,omitempty"`
	NotificationEmail *string          `json:"notification_email,omitempty"`
}

// PatchFromDraft turns a full form submission into a patch touching every editable field.
func PatchFromDraft(d Draft) Patch {
	level := d.ExperienceLevel
	count := d.Count
	name := d.Name
	title := d.JobTitle
	email := d.NotificationEmail
	return Patch{
		Name:              &name,
		JobTitle:          &title,
		ExperienceLevel:   &level,
		Count:             &count,
		NotificationEmail: &email,
	}
}

// ActivePatch only flips the active flag.
func ActivePatch(active bool) Patch {
	return Patch{IsActive: &active}
}

// RunResult is returned by an on-demand run of one saved search.
type RunResult struct {
	Message      string `json:"message,omitempty"`
	TotalResults int    `json:"total_results"`
	NewResults   int    `json:"new_results"`
}

func (r RunResult) Summary() string {
	return fmt.Sprintf("Search completed! Found %d total results, %d new.", r.TotalResults, r.NewResults)
}

// Ack is the generic acknowledgement body.
type Ack struct {
	Message string `json:"message"`
}

// SearchResult is one URL recorded for a saved search.
type SearchResult struct {
	ID      int64     `json:"id"`
	URL     string    `json:"url"`
	FoundAt Timestamp `json:"found_at"`
	IsNew   bool      `json:"is_new"`
}

type ResultsPage struct {
	SearchName   string         `json:"search_name"`
	TotalResults int            `json:"total_results"`
	Results      []SearchResult `json:"results"`
}

// AdhocQuery is the one-off search form.
type AdhocQuery struct {
	Text  string          `json:"text" validate:"required,min=2"`
	Level ExperienceLevel `json:"level" validate:"required,experience_level"`
	Count int             `json:"count" validate:"min=1,max=100"`
}
