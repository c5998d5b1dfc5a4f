package shared

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Audit actions.
const (
	AuditRoleCreate         = "role.create"
	AuditRoleUpdate         = "role.update"
	AuditRoleDelete         = "role.delete"
	AuditItemReject         = "item.reject"
	AuditItemDelete         = "item.delete"
	AuditInterestAssign     = "interest.assign"
	AuditProfileViewApprove = "profile_view.approve"
	AuditProfileViewDeny    = "profile_view.deny"
	AuditProfileViewRevoke  = "profile_view.revoke"
	AuditImplicationAdd     = "implication.add"
	AuditImplicationRemove  = "implication.remove"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Execer is satisfied by pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLogger writes records into audit_logs outside of any transaction.
type AuditLogger struct {
	exec Execer
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(exec Execer) *AuditLogger {
	return &AuditLogger{exec: exec}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.exec == nil {
		return errors.New("audit logger not initialised")
	}
	return WriteAudit(ctx, l.exec, log)
}

// WriteAudit inserts the entry using exec, so a transaction can own it.
func WriteAudit(ctx context.Context, exec Execer, log AuditLog) error {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at any
	if !log.At.IsZero() {
		at = log.At
	}
	_, err = exec.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}

// EntityID formats a numeric id for audit records.
func EntityID(id int64) string {
	return strconv.FormatInt(id, 10)
}
