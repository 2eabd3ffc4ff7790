package access

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aidatapp/aidat-backend/internal/models"
	"gorm.io/gorm"
)

// AuditLogger appends access log rows. Outside a transaction the write
// is best-effort: a failed audit write is reported but never turns a
// denial into a grant or vice versa.
type AuditLogger struct {
	db *gorm.DB
}

func NewAuditLogger(db *gorm.DB) *AuditLogger {
	return &AuditLogger{db: db}
}

func (a *AuditLogger) Record(entry *models.AccessLog) {
	if err := a.RecordTx(a.db, entry); err != nil {
		slog.Error("failed to write access log",
			"error", err,
			"access_point_id", entry.AccessPointID,
			"success", entry.Success,
		)
	}
}

// RecordTx writes the entry through tx so callers can make the audit
// row part of the same transaction that consumes a credential.
func (a *AuditLogger) RecordTx(tx *gorm.DB, entry *models.AccessLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create access log: %w", err)
	}
	return nil
}
