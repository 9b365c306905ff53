package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"resumematch/internal/config"
)

func TestBuildPrompts_Default(t *testing.T) {
	system, user := buildPrompts(config.PromptConfig{}, "JOB TEXT", "RESUME TEXT")

	assert.Empty(t, system)
	assert.Contains(t, user, "Act as an expert Applicant Tracking System (ATS).")
	assert.Contains(t, user, "Here is the Job Description:\n---\nJOB TEXT\n---")
	assert.Contains(t, user, "Here is the Resume Content:\n---\nRESUME TEXT\n---")
	assert.Less(t, strings.Index(user, "JOB TEXT"), strings.Index(user, "RESUME TEXT"))
}

func TestBuildPrompts_ConfiguredOverride(t *testing.T) {
	cfg := config.PromptConfig{
		System: "You are strict.",
		User:   "job=%s resume=%s",
	}
	system, user := buildPrompts(cfg, "a", "b")

	assert.Equal(t, "You are strict.", system)
	assert.Equal(t, "job=a resume=b", user)
}

func TestBuildPrompts_InputsAreVerbatim(t *testing.T) {
	_, user := buildPrompts(config.PromptConfig{}, "100% remote, {json} ok", "50%s done")
	assert.Contains(t, user, "100% remote, {json} ok")
	assert.Contains(t, user, "50%s done")
}

func TestResolvePrompt(t *testing.T) {
	assert.Equal(t, "file", resolvePrompt("file", "config", "default"))
	assert.Equal(t, "config", resolvePrompt("", "config", "default"))
	assert.Equal(t, "default", resolvePrompt("", "", "default"))
}
