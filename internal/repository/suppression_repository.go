package repository

import (
	"database/sql"

	"github.com/wablast/wablast-backend/internal/model"
)

type SuppressionRepositoryInterface interface {
	Add(phone, reason string) error
	Remove(phone string) error
	IsSuppressed(phone string) (bool, error)
	ListAll() ([]*model.SuppressedNumber, error)
}

type SuppressionRepository struct {
	DB *sql.DB
}

func (r *SuppressionRepository) Add(phone, reason string) error {
	query := `
        INSERT INTO suppressed_numbers (phone, reason, blocked_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (phone) DO UPDATE SET reason=EXCLUDED.reason
    `
	_, err := r.DB.Exec(query, phone, reason)
	return err
}

func (r *SuppressionRepository) Remove(phone string) error {
	_, err := r.DB.Exec(`DELETE FROM suppressed_numbers WHERE phone=$1`, phone)
	return err
}

func (r *SuppressionRepository) IsSuppressed(phone string) (bool, error) {
	var tmp int
	err := r.DB.QueryRow(`SELECT 1 FROM suppressed_numbers WHERE phone=$1`, phone).Scan(&tmp)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *SuppressionRepository) ListAll() ([]*model.SuppressedNumber, error) {
	rows, err := r.DB.Query(`SELECT phone, reason, blocked_at FROM suppressed_numbers ORDER BY blocked_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*model.SuppressedNumber{}
	for rows.Next() {
		var s model.SuppressedNumber
		if err := rows.Scan(&s.Phone, &s.Reason, &s.BlockedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &s)
	}
	return entries, rows.Err()
}

var _ SuppressionRepositoryInterface = (*SuppressionRepository)(nil)
