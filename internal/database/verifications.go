package database

import (
	"log/slog"

	"github.com/evidenceledger/eseal/internal/errl"
	"github.com/evidenceledger/eseal/internal/models"
)

// RecordVerification logs the outcome of a verification
func (d *Database) RecordVerification(v *models.VerificationRecord) error {
	query := `
		INSERT INTO verifications (seal_id, status, detail, verified_at)
		VALUES (?, ?, ?, ?)
	`

	res, err := d.db.Exec(query, v.SealID, v.Status, v.Detail, v.VerifiedAt)
	if err != nil {
		return errl.Errorf("failed to record verification: %w", err)
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return errl.Errorf("failed to read verification row id: %w", err)
	}

	slog.Debug("Recorded verification", "seal_id", v.SealID, "status", v.Status)
	return nil
}

// ListVerifications retrieves the verifications of a seal, newest first
func (d *Database) ListVerifications(sealID string) ([]models.VerificationRecord, error) {
	query := `
		SELECT id, seal_id, status, detail, verified_at
		FROM verifications
		WHERE seal_id = ?
		ORDER BY id DESC
	`

	rows, err := d.db.Query(query, sealID)
	if err != nil {
		return nil, errl.Errorf("failed to list verifications: %w", err)
	}
	defer rows.Close()

	var out []models.VerificationRecord
	for rows.Next() {
		var v models.VerificationRecord
		if err := rows.Scan(&v.ID, &v.SealID, &v.Status, &v.Detail, &v.VerifiedAt); err != nil {
			return nil, errl.Errorf("failed to scan verification: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errl.Errorf("failed to list verifications: %w", err)
	}

	return out, nil
}
