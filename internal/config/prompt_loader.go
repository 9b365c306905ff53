package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// LoadedPrompts holds prompt text read from files.
type LoadedPrompts struct {
	System string
	User   string
}

var loadedPrompts atomic.Pointer[LoadedPrompts]

// GetLoadedPrompts returns the prompts most recently loaded from files.
// The zero value means no file overrides.
func GetLoadedPrompts() LoadedPrompts {
	if p := loadedPrompts.Load(); p != nil {
		return *p
	}
	return LoadedPrompts{}
}

// PromptFiles lists the prompt files configured for watching.
func (c *Config) PromptFiles() []string {
	var files []string
	for _, f := range []string{c.AI.Prompts.SystemFile, c.AI.Prompts.UserFile} {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

// LoadPrompts reads the configured prompt files and publishes their content.
// The previous content stays in place when any file fails to load.
func (c *Config) LoadPrompts() error {
	var next LoadedPrompts

	if f := c.AI.Prompts.SystemFile; f != "" {
		content, err := loadPromptFromFile(f, "system")
		if err != nil {
			return err
		}
		next.System = content
	}

	if f := c.AI.Prompts.UserFile; f != "" {
		content, err := loadPromptFromFile(f, "user")
		if err != nil {
			return err
		}
		if err := validateUserTemplate(content); err != nil {
			return fmt.Errorf("user prompt file '%s': %w", f, err)
		}
		next.User = content
	}

	if c.AI.Prompts.User != "" {
		if err := validateUserTemplate(c.AI.Prompts.User); err != nil {
			return fmt.Errorf("user prompt: %w", err)
		}
	}

	loadedPrompts.Store(&next)

	if next.System == "" && next.User == "" {
		log.Println("[CONFIG] No prompt files configured")
	}
	return nil
}

// loadPromptFromFile reads and trims a prompt file. Empty files are an error.
func loadPromptFromFile(filePath, promptType string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path for %s prompt file '%s': %w", promptType, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s prompt file not found: %s", promptType, absPath)
		}
		return "", fmt.Errorf("failed to read %s prompt file '%s': %w", promptType, absPath, err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("%s prompt file '%s' is empty", promptType, absPath)
	}

	log.Printf("[CONFIG] Loaded %s prompt from file: %s (%d characters)", promptType, absPath, len(trimmed))
	return trimmed, nil
}

// validateUserTemplate requires exactly two %s verbs, for the job
// description and the résumé.
func validateUserTemplate(tmpl string) error {
	n := strings.Count(strings.ReplaceAll(tmpl, "%%", ""), "%s")
	if n != 2 {
		return fmt.Errorf("template must contain exactly two %%s placeholders (job description, resume), found %d", n)
	}
	return nil
}
