package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/turuturustars/turuturustars-sub001/v1/models"
	"gopkg.in/yaml.v3"
)

type cleanupPlanFile struct {
	Steps []models.CleanupStep `yaml:"steps"`
}

// LoadCleanupPlan reads a cleanup plan from YAML.
// An empty path returns the built-in plan.
func LoadCleanupPlan(path string) (models.CleanupPlan, error) {
	if path == "" {
		return models.DefaultCleanupPlan(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cleanup plan %s: %w", path, err)
	}

	var file cleanupPlanFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse cleanup plan %s: %w", path, err)
	}

	plan := models.CleanupPlan(file.Steps)
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cleanup plan %s: %w", path, err)
	}

	slog.Info("Loaded cleanup plan", "path", path, "steps", len(plan))
	return plan, nil
}
