package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/policy"
	"github.com/fieldops/dispatch/engine/project"
	"github.com/fieldops/dispatch/pkg/logger"
)

// Config carries the defaults the seeder writes on first run.
type Config struct {
	DefaultTimezone string
	DefaultBreakMin int
}

// Seeder provisions the rows the dispatch core assumes exist: the
// sentinel projects and the default timesheet settings list. Every step
// is idempotent; running it on each boot is the intended usage.
type Seeder struct {
	projects project.Repository
	settings policy.Repository
	cfg      Config
	now      func() time.Time
}

// NewSeeder creates a bootstrap seeder.
func NewSeeder(projects project.Repository, settings policy.Repository, cfg Config) *Seeder {
	return &Seeder{projects: projects, settings: settings, cfg: cfg, now: time.Now}
}

// WithClock overrides the seeder's time source. Intended for tests.
func (s *Seeder) WithClock(now func() time.Time) *Seeder {
	s.now = now
	return s
}

// Run seeds anything missing and leaves existing rows untouched.
func (s *Seeder) Run(ctx context.Context) error {
	if err := s.ensureProject(ctx, project.CodeGeneral, "General"); err != nil {
		return err
	}
	if err := s.ensureProject(ctx, project.CodeSystemInternal, "System Internal"); err != nil {
		return err
	}
	breakMin, err := json.Marshal(s.cfg.DefaultBreakMin)
	if err != nil {
		return fmt.Errorf("encoding default break minutes: %w", err)
	}
	if err := s.ensureSetting(ctx, policy.ListTimesheet, policy.ItemDefaultBreakMinutes, breakMin); err != nil {
		return err
	}
	return s.ensureSetting(ctx, policy.ListTimesheet, policy.ItemBreakEligibleWorkers,
		json.RawMessage("[]"))
}

func (s *Seeder) ensureProject(ctx context.Context, code, name string) error {
	_, err := s.projects.GetByCode(ctx, code)
	if err == nil {
		return nil
	}
	if !errors.Is(err, project.ErrNotFound) {
		return fmt.Errorf("looking up sentinel project %s: %w", code, err)
	}
	id, err := core.NewID()
	if err != nil {
		return fmt.Errorf("generating project id: %w", err)
	}
	now := s.now().UTC()
	p := &project.Project{
		ID:        id,
		Name:      name,
		Code:      code,
		Timezone:  s.cfg.DefaultTimezone,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return fmt.Errorf("creating sentinel project %s: %w", code, err)
	}
	logger.FromContext(ctx).Info("Sentinel project seeded", "code", code, "project_id", id)
	return nil
}

func (s *Seeder) ensureSetting(ctx context.Context, listName, label string, value json.RawMessage) error {
	_, err := s.settings.GetItemValue(ctx, listName, label)
	if err == nil {
		return nil
	}
	if !errors.Is(err, policy.ErrItemNotFound) {
		return fmt.Errorf("looking up setting %s/%s: %w", listName, label, err)
	}
	if err := s.settings.UpsertItem(ctx, listName, label, value); err != nil {
		return fmt.Errorf("seeding setting %s/%s: %w", listName, label, err)
	}
	logger.FromContext(ctx).Info("Default setting seeded", "list", listName, "item", label)
	return nil
}
