// Package calendar builds "add to calendar" links for scheduled search runs.
package calendar

import (
	"fmt"
	"net/url"
	"time"

	"github.com/0xPuncker/job-watcher/pkg/types"
)

// RunWindow is the length of the calendar entry for one scheduler run.
const RunWindow = 15 * time.Minute

func CreateEventURL(title, description string, startTime, endTime time.Time) (string, error) {
	if title == "" {
		return "", fmt.Errorf("title cannot be empty")
	}

	if !endTime.After(startTime) {
		return "", fmt.Errorf("end time must be after start time")
	}

	start := startTime.UTC().Format("20060102T150405Z")
	end := endTime.UTC().Format("20060102T150405Z")

	u := url.URL{
		Scheme: "https",
		Host:   "calendar.google.com",
		Path:   "calendar/render",
	}

	params := url.Values{}
	params.Add("action", "TEMPLATE")
	params.Add("text", title)
	params.Add("details", description)
	params.Add("dates", fmt.Sprintf("%s/%s", start, end))

	u.RawQuery = params.Encode()

	return u.String(), nil
}

// NextRunURL links the next scheduled run. It fails when the scheduler is
// stopped or has no upcoming run.
func NextRunURL(status *types.SchedulerStatus) (string, error) {
	if status == nil || !status.Running {
		return "", fmt.Errorf("scheduler is not running")
	}
	if status.NextRun == nil || status.NextRun.IsZero() {
		return "", fmt.Errorf("no upcoming run")
	}

	noun := "searches"
	if status.JobsCount == 1 {
		noun = "search"
	}
	description := fmt.Sprintf("Scheduled run of %d saved %s", status.JobsCount, noun)

	return CreateEventURL("Job Watcher scheduled run", description, status.NextRun.Time, status.NextRun.Add(RunWindow))
}
