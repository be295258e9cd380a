package database

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/mattn/go-sqlite3"

	"github.com/evidenceledger/eseal/internal/errl"
	"github.com/evidenceledger/eseal/internal/models"
)

// ErrDuplicateSealID is returned when a seal id is already registered
var ErrDuplicateSealID = errors.New("seal id already registered")

// CreateSeal stores an issued seal and sets its ID
func (d *Database) CreateSeal(rec *models.SealRecord) error {
	query := `
		INSERT INTO seals (
			seal_id, name, seal_type, image_format, algorithm,
			signer_subject, signer_fingerprint, valid_start, valid_end, data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := d.db.Exec(query,
		rec.SealID, rec.Name, rec.SealType, rec.ImageFormat, rec.Algorithm,
		rec.SignerSubject, rec.SignerFingerprint, rec.ValidStart, rec.ValidEnd, rec.Data,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return errl.Errorf("%w: %s", ErrDuplicateSealID, rec.SealID)
		}
		return errl.Errorf("failed to create seal: %w", err)
	}

	if rec.ID, err = res.LastInsertId(); err != nil {
		return errl.Errorf("failed to read seal row id: %w", err)
	}

	slog.Info("Created seal", "seal_id", rec.SealID, "name", rec.Name)
	return nil
}

// GetSeal retrieves a seal by seal id, including its encoding
func (d *Database) GetSeal(sealID string) (*models.SealRecord, error) {
	query := `
		SELECT id, seal_id, name, seal_type, image_format, algorithm,
		       signer_subject, signer_fingerprint, valid_start, valid_end,
		       data, created_at
		FROM seals
		WHERE seal_id = ?
	`

	var rec models.SealRecord
	err := d.db.QueryRow(query, sealID).Scan(
		&rec.ID, &rec.SealID, &rec.Name, &rec.SealType, &rec.ImageFormat, &rec.Algorithm,
		&rec.SignerSubject, &rec.SignerFingerprint, &rec.ValidStart, &rec.ValidEnd,
		&rec.Data, &rec.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errl.Errorf("failed to get seal: %w", err)
	}

	return &rec, nil
}

// ListSeals retrieves all seals without their encodings, newest first
func (d *Database) ListSeals() ([]models.SealRecord, error) {
	query := `
		SELECT id, seal_id, name, seal_type, image_format, algorithm,
		       signer_subject, signer_fingerprint, valid_start, valid_end, created_at
		FROM seals
		ORDER BY id DESC
	`

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, errl.Errorf("failed to list seals: %w", err)
	}
	defer rows.Close()

	var recs []models.SealRecord
	for rows.Next() {
		var rec models.SealRecord
		err := rows.Scan(
			&rec.ID, &rec.SealID, &rec.Name, &rec.SealType, &rec.ImageFormat, &rec.Algorithm,
			&rec.SignerSubject, &rec.SignerFingerprint, &rec.ValidStart, &rec.ValidEnd, &rec.CreatedAt,
		)
		if err != nil {
			return nil, errl.Errorf("failed to scan seal: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errl.Errorf("failed to list seals: %w", err)
	}

	return recs, nil
}

// DeleteSeal deletes a seal by seal id and reports whether it existed
func (d *Database) DeleteSeal(sealID string) (bool, error) {
	res, err := d.db.Exec("DELETE FROM seals WHERE seal_id = ?", sealID)
	if err != nil {
		return false, errl.Errorf("failed to delete seal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errl.Errorf("failed to delete seal: %w", err)
	}

	if n > 0 {
		slog.Info("Deleted seal", "seal_id", sealID)
	}
	return n > 0, nil
}
