package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/wablast/wablast-backend/internal/errors"
	"github.com/wablast/wablast-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error)
	UpdateStatus(campaignID int, status string) error
	SetSelectedVariation(campaignID int, text string) error
	SetTotalRecipients(campaignID, total int) error
	ListDue(now time.Time) ([]*model.Campaign, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, name, template, fixed_params, buttons, include_stop_option,
	selected_variation, status, scheduled_at, total_recipients, created_at, updated_at`

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	if c.ScheduledAt != nil {
		c.Status = model.CampaignStatusScheduled
	}
	query := `
        INSERT INTO campaigns (name, template, fixed_params, buttons, include_stop_option, status, scheduled_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		c.Name, c.Template, c.FixedParams, c.Buttons, c.IncludeStopOption,
		c.Status, c.ScheduledAt, c.CreatedAt,
	).Scan(&c.ID)
}

func scanCampaign(row interface{ Scan(...any) error }) (*model.Campaign, error) {
	var c model.Campaign
	var selected sql.NullString
	err := row.Scan(
		&c.ID, &c.Name, &c.Template, &c.FixedParams, &c.Buttons, &c.IncludeStopOption,
		&selected, &c.Status, &c.ScheduledAt, &c.TotalRecipients, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.SelectedVariation = selected.String
	return &c, nil
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE id=$1`, campaignColumns)
	c, err := scanCampaign(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE 1=1`, campaignColumns)
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	if status != "" {
		countQuery += " AND status=$1"
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status string) error {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, status, campaignID)
	return err
}

func (r *CampaignRepository) SetSelectedVariation(campaignID int, text string) error {
	query := `UPDATE campaigns SET selected_variation=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, text, campaignID)
	return err
}

func (r *CampaignRepository) SetTotalRecipients(campaignID, total int) error {
	query := `UPDATE campaigns SET total_recipients=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, total, campaignID)
	return err
}

// ListDue returns scheduled campaigns whose scheduled_at has passed.
func (r *CampaignRepository) ListDue(now time.Time) ([]*model.Campaign, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM campaigns
        WHERE status=$1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
        ORDER BY scheduled_at ASC
    `, campaignColumns)
	rows, err := r.DB.Query(query, model.CampaignStatusScheduled, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	due := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, c)
	}
	return due, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
