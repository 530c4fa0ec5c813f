// Package audit maintains the per-organization tamper-evident log. Every
// entry's hash covers the previous entry's hash plus the entry's canonical
// fields, so rewriting history breaks the chain at the first altered row.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

// GenesisHash anchors each organization's chain: the first entry's PrevHash.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Audit event types emitted by the engine and the services.
const (
	EventWorkflowCreated   = "workflow.created"
	EventWorkflowUpdated   = "workflow.updated"
	EventWorkflowPublished = "workflow.published"
	EventWorkflowDeleted   = "workflow.deleted"
	EventExecutionRun      = "execution.run"
	EventTaskResolved      = "task.resolved"
	EventSettingsChanged   = "settings.changed"
)

// Logger appends to the chain. Appends run inside a storage transaction that
// locks the chain head, so concurrent writers within one organization
// serialize instead of forking the chain.
type Logger struct {
	persistence persistence.Persistence
}

// NewLogger creates an audit logger over the persistence layer.
func NewLogger(p persistence.Persistence) *Logger {
	return &Logger{persistence: p}
}

// Append chains and writes one entry. The caller fills the business fields;
// Append assigns ID, CreatedAt, PrevHash and EntryHash. Details must already
// be PII-redacted.
func (l *Logger) Append(ctx context.Context, entry *models.AuditEntry) error {
	if entry.OrganizationID == "" {
		return fmt.Errorf("audit entry requires an organization id")
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	return l.persistence.Transaction(ctx, func(ctx context.Context) error {
		prev, err := l.persistence.Audit().LastHashForUpdate(ctx, entry.OrganizationID)
		if err != nil {
			return fmt.Errorf("failed to read audit chain head: %w", err)
		}

		if prev == "" {
			prev = GenesisHash
		}

		entry.PrevHash = prev

		entry.EntryHash, err = ComputeEntryHash(entry)
		if err != nil {
			return err
		}

		if err := l.persistence.Audit().Insert(ctx, entry); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}

		return nil
	})
}

// ChainBreakError reports the first entry whose hash linkage does not verify.
type ChainBreakError struct {
	OrganizationID string
	Index          int
	EntryID        string
	Reason         string
}

func (e *ChainBreakError) Error() string {
	return fmt.Sprintf("audit chain broken for %s at entry %d (%s): %s",
		e.OrganizationID, e.Index, e.EntryID, e.Reason)
}

// Verify walks the organization's chain in order and re-derives every hash.
// It returns nil for an intact (or empty) chain and a ChainBreakError at the
// first break.
func (l *Logger) Verify(ctx context.Context, organizationID string) error {
	entries, err := l.persistence.Audit().List(ctx, organizationID, 0)
	if err != nil {
		return fmt.Errorf("failed to list audit entries: %w", err)
	}

	prev := GenesisHash

	for i, entry := range entries {
		if entry.PrevHash != prev {
			return &ChainBreakError{
				OrganizationID: organizationID,
				Index:          i,
				EntryID:        entry.ID,
				Reason:         "prev_hash does not match preceding entry",
			}
		}

		expected, err := ComputeEntryHash(entry)
		if err != nil {
			return err
		}

		if entry.EntryHash != expected {
			return &ChainBreakError{
				OrganizationID: organizationID,
				Index:          i,
				EntryID:        entry.ID,
				Reason:         "entry_hash does not match entry fields",
			}
		}

		prev = entry.EntryHash
	}

	return nil
}

// ComputeEntryHash derives the SHA-256 hash of an entry's canonical form:
// the previous hash and the business fields joined with newlines, details as
// canonical JSON (Go's encoder sorts map keys), timestamps as RFC 3339 UTC
// with nanoseconds. Field order here is part of the stored format; changing
// it invalidates existing chains.
func ComputeEntryHash(entry *models.AuditEntry) (string, error) {
	details, err := canonicalDetails(entry.Details)
	if err != nil {
		return "", err
	}

	canonical := strings.Join([]string{
		entry.PrevHash,
		entry.OrganizationID,
		entry.EventType,
		entry.Actor,
		entry.TargetType,
		entry.TargetID,
		details,
		entry.BeforeVersionID,
		entry.AfterVersionID,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, "\n")

	sum := sha256.Sum256([]byte(canonical))

	return hex.EncodeToString(sum[:]), nil
}

func canonicalDetails(details map[string]any) (string, error) {
	if len(details) == 0 {
		return "", nil
	}

	encoded, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize audit details: %w", err)
	}

	return string(encoded), nil
}
