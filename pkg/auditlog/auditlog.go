package auditlog

import (
	"go.uber.org/zap"

	"toolroom/pkg/models"
)

// Auditable is implemented by every record the engines mutate; CreateLogView
// names the resource the audit entry is attached to.
type Auditable interface {
	CreateLogView() models.AuditLog
}

type Persister interface {
	PersistLog(auditLog models.AuditLog, data interface{}) error
}

type Auditlog struct {
	r   Persister
	log *zap.Logger
}

func NewAuditLog(persister Persister, log *zap.Logger) *Auditlog {
	return &Auditlog{r: persister, log: log}
}

// Log appends one audit entry. Callers fire it after the owning transaction
// committed; a failed append never affects the operation's outcome.
func (a *Auditlog) Log(action string, data interface{}, item Auditable) {
	auditLog := item.CreateLogView()
	auditLog.Action = action

	if err := a.r.PersistLog(auditLog, data); err != nil {
		a.log.Warn("unable to create audit log entry",
			zap.String("resource_id", auditLog.ResourceID),
			zap.String("resource_type", auditLog.ResourceType),
			zap.Error(err),
		)
		return
	}

	a.log.Debug("created audit log entry",
		zap.String("resource_id", auditLog.ResourceID),
		zap.String("action", action),
	)
}
