package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule is the timing row backing one scheduled workflow. It stores the
// cron expression and the precomputed next due time so the sweeper can find
// due workflows with a single indexed query instead of per-workflow timers.
type Schedule struct {
	// WorkflowID identifies the scheduled workflow this entry drives.
	WorkflowID string `json:"workflow_id" validate:"required"`

	// OrganizationID scopes sweeper queries per tenant.
	OrganizationID string `json:"organization_id" validate:"required"`

	// CronExpression uses the standard 5-field format
	// (minute hour day month weekday).
	CronExpression string `json:"cron_expression" validate:"required"`

	// Timezone is an IANA zone name; empty means UTC.
	Timezone string `json:"timezone,omitempty"`

	// NextDueAt is the precomputed next fire time, advanced after each fire.
	NextDueAt time.Time `json:"next_due_at"`

	// Active mirrors the workflow's runnable state; inactive schedules are
	// skipped by the sweeper without loading the workflow.
	Active bool `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSchedule creates a schedule with its first due time computed from now.
func NewSchedule(workflowID, organizationID, cronExpression, timezone string) (*Schedule, error) {
	now := time.Now().UTC()
	schedule := &Schedule{
		WorkflowID:     workflowID,
		OrganizationID: organizationID,
		CronExpression: cronExpression,
		Timezone:       timezone,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := schedule.advance(now); err != nil {
		return nil, err
	}

	return schedule, nil
}

// Advance recomputes NextDueAt from the current time, after a fire.
func (s *Schedule) Advance() error {
	return s.advance(time.Now().UTC())
}

func (s *Schedule) advance(reference time.Time) error {
	cronSchedule, err := parseCron(s.CronExpression)
	if err != nil {
		return err
	}

	if s.Timezone != "" {
		location, err := time.LoadLocation(s.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
		}

		reference = reference.In(location)
	}

	s.NextDueAt = cronSchedule.Next(reference).UTC()
	s.UpdatedAt = time.Now().UTC()

	return nil
}

// IsDue reports whether the schedule should fire at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Active && !s.NextDueAt.After(now)
}

// Validate checks the schedule fields, including the cron expression.
func (s *Schedule) Validate() error {
	if s.WorkflowID == "" || s.OrganizationID == "" || s.CronExpression == "" {
		return ErrInvalidSchedule
	}

	return ValidateCronExpression(s.CronExpression)
}

// ValidateCronExpression checks a 5-field cron expression without building a
// schedule. Workflow save-time validation uses it so malformed expressions
// are rejected at authoring time.
func ValidateCronExpression(expression string) error {
	_, err := parseCron(expression)

	return err
}

func parseCron(expression string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	return parser.Parse(expression)
}

var (
	// ErrInvalidSchedule is returned when schedule validation fails
	ErrInvalidSchedule = errors.New("invalid schedule configuration")
)
