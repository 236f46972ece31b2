// Package validation checks form input before any request leaves the client.
package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/0xPuncker/job-watcher/internal/errors"
	"github.com/0xPuncker/job-watcher/pkg/types"
	"github.com/go-playground/validator/v10"
)

const msgRequired = "Please fill in all required fields"

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("experience_level", func(fl validator.FieldLevel) bool {
			return types.ExperienceLevel(fl.Field().String()).Valid()
		})
	})
	return validate
}

// Draft validates a create/edit form submission.
func Draft(d types.Draft) error {
	if err := check(d); err != nil {
		return err
	}
	return Email(d.NotificationEmail)
}

// Patch validates only the fields present in p. An empty notification
// email clears the address and is accepted.
func Patch(p types.Patch) error {
	if err := check(p); err != nil {
		return err
	}
	if p.NotificationEmail != nil {
		return Email(*p.NotificationEmail)
	}
	return nil
}

// Query validates the ad-hoc search form. Text is trimmed first.
func Query(q types.AdhocQuery) error {
	q.Text = strings.TrimSpace(q.Text)
	return check(q)
}

// Email validates an optional notification address.
func Email(address string) error {
	if err := instance().Var(strings.TrimSpace(address), "omitempty,email"); err != nil {
		return errors.Validationf("%q is not a valid email address", address)
	}
	return nil
}

func check(v interface{}) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return errors.Mark(errors.Wrap(err, "validation"), errors.ErrValidation)
	}
	return errors.Validation(describe(fieldErrs[0]))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "experience_level":
		levels := make([]string, len(types.ExperienceLevels))
		for i, level := range types.ExperienceLevels {
			levels[i] = string(level)
		}
		return fmt.Sprintf("Experience level must be one of: %s", strings.Join(levels, ", "))
	}

	switch fe.Field() {
	case "Count":
		return fmt.Sprintf("Number of results must be between %d and %d", types.MinCount, types.MaxCount)
	case "Text":
		return "Job title must be at least 2 characters"
	case "Name", "JobTitle":
		return msgRequired
	}
	return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
}
