package automation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urmzd/zigman/pkg/device"
)

type ruleFile struct {
	Rules []storedRule `json:"rules"`
}

// storedRule carries the legacy single-threshold field alongside the current
// shape so old files load and migrate.
type storedRule struct {
	Rule
	Threshold *Condition `json:"threshold,omitempty"`
}

// loadRules reads the persisted rule set. A missing file yields an empty set.
// Legacy rules with a single threshold are migrated to the conditions list;
// migrated reports whether the file should be rewritten.
func loadRules(path string) (rules []*Rule, migrated bool, err error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read automations: %w", err)
	}

	var doc ruleFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("parse automations: %w", err)
	}

	rules = make([]*Rule, 0, len(doc.Rules))
	for _, sr := range doc.Rules {
		r := sr.Rule
		if len(r.Conditions) == 0 && sr.Threshold != nil {
			r.Conditions = []Condition{*sr.Threshold}
			migrated = true
		}
		rules = append(rules, &r)
	}
	return rules, migrated, nil
}

// saveRules persists the rule set atomically: write to a temp file in the
// same directory, then rename over the target.
func saveRules(path string, rules []*Rule) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w: %w", err, device.ErrPersistence)
	}

	doc := ruleFile{Rules: make([]storedRule, 0, len(rules))}
	for _, r := range rules {
		doc.Rules = append(doc.Rules, storedRule{Rule: *r})
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode automations: %w: %w", err, device.ErrPersistence)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w: %w", err, device.ErrPersistence)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write automations: %w: %w", err, device.ErrPersistence)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close automations: %w: %w", err, device.ErrPersistence)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace automations: %w: %w", err, device.ErrPersistence)
	}
	return nil
}
