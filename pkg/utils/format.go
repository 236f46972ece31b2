package utils

import (
	"time"

	"github.com/0xPuncker/job-watcher/pkg/types"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	TimestampLayout = "Jan 2, 2006, 03:04 PM"
	Never           = "Never"
)

// FormatTimestamp renders an optional server timestamp; absent values read "Never".
func FormatTimestamp(ts *types.Timestamp, loc *time.Location) string {
	if ts == nil || ts.IsZero() {
		return Never
	}
	if loc == nil {
		loc = time.UTC
	}
	return ts.In(loc).Format(TimestampLayout)
}

// LevelLabel title-cases an experience level for display.
func LevelLabel(level types.ExperienceLevel) string {
	return cases.Title(language.English).String(string(level))
}

func StatusLabel(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}
