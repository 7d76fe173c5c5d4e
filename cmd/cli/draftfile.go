package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/and161185/lesson-planner/internal/draft"
)

// loadDraft reads the draft file; a missing file yields an empty draft.
func loadDraft(path string) (*draft.Store, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return draft.New(), nil
	}
	if err != nil {
		return nil, err
	}
	var d draft.Draft
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return draft.Restore(d), nil
}

// saveDraft writes d atomically via a temp file in the same directory.
func saveDraft(path string, d draft.Draft) error {
	b, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".lesson-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
