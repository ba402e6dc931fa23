package server

import (
	"github.com/fieldops/dispatch/engine/attendance"
	"github.com/fieldops/dispatch/engine/audit"
	"github.com/fieldops/dispatch/engine/bootstrap"
	"github.com/fieldops/dispatch/engine/notify"
	"github.com/fieldops/dispatch/engine/perm"
	"github.com/fieldops/dispatch/engine/policy"
	"github.com/fieldops/dispatch/engine/project"
	"github.com/fieldops/dispatch/engine/shift"
	"github.com/fieldops/dispatch/engine/task"
	"github.com/fieldops/dispatch/engine/timesheet"
	"github.com/fieldops/dispatch/engine/user"
	"github.com/fieldops/dispatch/engine/infra/postgres"
	"github.com/fieldops/dispatch/pkg/config"
)

// Components is the assembled dependency graph of the dispatch core:
// every repository bound to the pool and every service wired to its
// collaborators.
type Components struct {
	Users      user.Repository
	Shifts     *shift.Service
	Attendance *attendance.Service
	Timesheets *timesheet.Service
	Projects   *project.Service
	Timeline   *audit.Timeline
	Policies   *policy.Service
	Dispatcher *notify.Dispatcher
	Seeder     *bootstrap.Seeder
}

// BuildComponents wires the dispatch core onto the store. The store is
// both the connection pool for the repositories and the transaction
// runner the services wrap their mutations in.
func BuildComponents(store *postgres.Store, cfg *config.Config) *Components {
	pool := store.Pool()
	users := user.NewPostgresRepository(pool)
	projects := project.NewPostgresRepository(pool)
	shifts := shift.NewPostgresRepository(pool)
	records := attendance.NewPostgresRepository(pool)
	entries := timesheet.NewPostgresRepository(pool)
	entryLogs := timesheet.NewPostgresLogRepository(pool)
	tasks := task.NewPostgresRepository(pool)
	audits := audit.NewPostgresRepository(pool)
	pushes := notify.NewPostgresRepository(pool)
	settings := policy.NewPostgresRepository(pool)

	gate := perm.NewGate(cfg.Dispatch.ReasonMinChars)
	auditor := audit.NewWriter(audits, cfg.Server.JWTSecret)
	gateway := notify.NewGateway(pushes, cfg.Dispatch.EnablePush, cfg.Dispatch.EnableEmail)
	seeder := task.NewSeeder(tasks)
	policies := policy.NewService(settings)

	timesheets := timesheet.NewService(
		store, entries, entryLogs, records, shifts, projects, users,
		gate, auditor, audits,
		timesheet.Config{DefaultTimezone: cfg.Dispatch.DefaultTimezone},
	)
	shiftService := shift.NewService(store, shifts, projects, users, gate, auditor, gateway)
	attendanceService := attendance.NewService(
		store, records, shifts, projects, users, gate, policies,
		auditor, gateway, seeder, timesheets,
		attendance.Config{
			DefaultTimezone: cfg.Dispatch.DefaultTimezone,
			GeoRadiusM:      cfg.Dispatch.GeoRadiusM,
			// No accuracy slack on the inside test in production.
			GeoMaxSlackM: 0,
		},
	)
	return &Components{
		Users:      users,
		Shifts:     shiftService,
		Attendance: attendanceService,
		Timesheets: timesheets,
		Projects:   project.NewService(store, projects, shiftService, auditor),
		Timeline:   audit.NewTimeline(audits, users, project.NameLookup{Repo: projects}),
		Policies:   policies,
		Dispatcher: notify.NewDispatcher(pushes, nil),
		Seeder: bootstrap.NewSeeder(projects, settings, bootstrap.Config{
			DefaultTimezone: cfg.Dispatch.DefaultTimezone,
			DefaultBreakMin: cfg.Dispatch.DefaultBreakMin,
		}),
	}
}
