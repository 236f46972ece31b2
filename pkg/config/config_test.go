package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/0xPuncker/job-watcher/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "searches.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSeeds(t *testing.T) {
	path := writeSeed(t, `
searches:
  - name: Senior FE
    job_title: Frontend Developer
    experience_level: senior level
    count: 40
    notification_email: me@example.com
  - name: Interns
    job_title: Software Engineer
    experience_level: intern
`)

	seeds, err := LoadSeeds(path)
	require.NoError(t, err)
	require.Len(t, seeds.Searches, 2)

	assert.Equal(t, types.Draft{
		Name:              "Senior FE",
		JobTitle:          "Frontend Developer",
		ExperienceLevel:   types.LevelSenior,
		Count:             40,
		NotificationEmail: "me@example.com",
	}, seeds.Searches[0])
	assert.Equal(t, types.DefaultCount, seeds.Searches[1].Count)

	interns := seeds.GetSearchByName("Interns")
	require.NotNil(t, interns)
	assert.Equal(t, types.LevelIntern, interns.ExperienceLevel)
	assert.Nil(t, seeds.GetSearchByName("missing"))
}

func TestLoadSeedsErrors(t *testing.T) {
	_, err := LoadSeeds(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = LoadSeeds(writeSeed(t, "searches: [unterminated"))
	assert.Error(t, err)
}
