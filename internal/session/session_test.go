package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatic(t *testing.T) {
	var signedOut Static
	_, ok := signedOut.Token()
	assert.False(t, ok)
	assert.False(t, signedOut.SignedIn())

	s := NewStatic("  abc  ")
	token, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
	assert.True(t, s.SignedIn())
}

func TestEnv(t *testing.T) {
	t.Setenv("JOB_WATCHER_TEST_TOKEN", "")
	s := Env("JOB_WATCHER_TEST_TOKEN")
	assert.False(t, s.SignedIn())

	t.Setenv("JOB_WATCHER_TEST_TOKEN", "rotated")
	token, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "rotated", token)
}

func TestHolder(t *testing.T) {
	h := &Holder{}
	assert.False(t, h.SignedIn())

	h.Set("tok")
	token, ok := h.Token()
	assert.True(t, ok)
	assert.Equal(t, "tok", token)

	h.Clear()
	assert.False(t, h.SignedIn())
}

func TestHolderFallback(t *testing.T) {
	h := NewHolder(NewStatic("from-env"))
	token, ok := h.Token()
	assert.True(t, ok)
	assert.Equal(t, "from-env", token)

	h.Set("pushed")
	token, _ = h.Token()
	assert.Equal(t, "pushed", token)

	h.Clear()
	assert.False(t, h.SignedIn(), "sign-out must not fall back to the environment token")
}
