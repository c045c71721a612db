package repository

import (
	"database/sql"
	"time"

	"github.com/wablast/wablast-backend/internal/model"
)

// RecipientRepositoryInterface defines the store operations the ingestion
// service and the dispatch loop need.
type RecipientRepositoryInterface interface {
	BulkInsert(campaignID int, recipients []*model.Recipient) (int, error)
	ListByCampaign(campaignID int) ([]*model.Recipient, error)
	ListPending(campaignID int) ([]*model.Recipient, error)
	UpdateStatus(campaignID int, phone, status, reason string) error
	CountByStatus(campaignID int) (map[string]int, error)
}

type RecipientRepository struct {
	DB *sql.DB
}

// BulkInsert stores the batch inside one transaction. Phones already present
// for the campaign are skipped via ON CONFLICT DO NOTHING, so re-ingesting is
// safe. Returns the number of rows actually stored.
func (r *RecipientRepository) BulkInsert(campaignID int, recipients []*model.Recipient) (int, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO recipients (campaign_id, name, phone, extra, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (campaign_id, phone) DO NOTHING
    `
	stored := 0
	now := time.Now()
	for _, rec := range recipients {
		res, err := tx.Exec(query, campaignID, rec.Name, rec.Phone, rec.Extra, model.StatusPending, now)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		stored += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return stored, nil
}

const recipientColumns = `id, campaign_id, name, phone, extra, status, sent_at, failure_reason, created_at`

func scanRecipient(row interface{ Scan(...any) error }) (*model.Recipient, error) {
	var rec model.Recipient
	var reason sql.NullString
	err := row.Scan(
		&rec.ID, &rec.CampaignID, &rec.Name, &rec.Phone, &rec.Extra,
		&rec.Status, &rec.SentAt, &reason, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.FailureReason = reason.String
	return &rec, nil
}

func (r *RecipientRepository) list(campaignID int, onlyPending bool) ([]*model.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE campaign_id=$1`
	args := []interface{}{campaignID}
	if onlyPending {
		query += ` AND status=$2`
		args = append(args, model.StatusPending)
	}
	query += ` ORDER BY id ASC`

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []*model.Recipient{}
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

// ListByCampaign returns all recipients in storage order.
func (r *RecipientRepository) ListByCampaign(campaignID int) ([]*model.Recipient, error) {
	return r.list(campaignID, false)
}

// ListPending returns recipients not yet in a terminal status.
func (r *RecipientRepository) ListPending(campaignID int) ([]*model.Recipient, error) {
	return r.list(campaignID, true)
}

// UpdateStatus is idempotent per call; sent_at is stamped only on "sent".
func (r *RecipientRepository) UpdateStatus(campaignID int, phone, status, reason string) error {
	var query string
	if status == model.StatusSent {
		query = `UPDATE recipients SET status=$3, failure_reason=NULL, sent_at=NOW() WHERE campaign_id=$1 AND phone=$2`
		_, err := r.DB.Exec(query, campaignID, phone, status)
		return err
	}
	query = `UPDATE recipients SET status=$3, failure_reason=$4 WHERE campaign_id=$1 AND phone=$2`
	_, err := r.DB.Exec(query, campaignID, phone, status, reason)
	return err
}

func (r *RecipientRepository) CountByStatus(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM recipients WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{"pending": 0, "sent": 0, "failed": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
