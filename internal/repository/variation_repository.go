package repository

import (
	"database/sql"
	"time"

	"github.com/wablast/wablast-backend/internal/model"
)

type VariationRepositoryInterface interface {
	Create(v *model.Variation) error
	CountByCampaign(campaignID int) (int, error)
	ListRecent(campaignID, limit int) ([]*model.Variation, error)
	ListByCampaign(campaignID int) ([]*model.Variation, error)
	GetByNumber(campaignID, number int) (*model.Variation, error)
}

type VariationRepository struct {
	DB *sql.DB
}

// Create appends a variation row. variation_number carries a per-campaign
// unique index, so a numbering race surfaces as a constraint error instead of
// silently corrupting the sequence.
func (r *VariationRepository) Create(v *model.Variation) error {
	v.CreatedAt = time.Now()
	query := `
        INSERT INTO variations (campaign_id, text, source_template, variation_number, params_snapshot, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		v.CampaignID, v.Text, v.SourceTemplate, v.Number, v.ParamsSnapshot, v.CreatedAt,
	).Scan(&v.ID)
}

func (r *VariationRepository) CountByCampaign(campaignID int) (int, error) {
	var count int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM variations WHERE campaign_id=$1`, campaignID).Scan(&count)
	return count, err
}

const variationColumns = `id, campaign_id, text, source_template, variation_number, params_snapshot, created_at`

func (r *VariationRepository) queryVariations(query string, args ...interface{}) ([]*model.Variation, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	variations := []*model.Variation{}
	for rows.Next() {
		var v model.Variation
		if err := rows.Scan(&v.ID, &v.CampaignID, &v.Text, &v.SourceTemplate, &v.Number, &v.ParamsSnapshot, &v.CreatedAt); err != nil {
			return nil, err
		}
		variations = append(variations, &v)
	}
	return variations, rows.Err()
}

// ListRecent returns the newest variations first, capped at limit.
func (r *VariationRepository) ListRecent(campaignID, limit int) ([]*model.Variation, error) {
	query := `SELECT ` + variationColumns + ` FROM variations WHERE campaign_id=$1 ORDER BY variation_number DESC LIMIT $2`
	return r.queryVariations(query, campaignID, limit)
}

func (r *VariationRepository) ListByCampaign(campaignID int) ([]*model.Variation, error) {
	query := `SELECT ` + variationColumns + ` FROM variations WHERE campaign_id=$1 ORDER BY variation_number ASC`
	return r.queryVariations(query, campaignID)
}

func (r *VariationRepository) GetByNumber(campaignID, number int) (*model.Variation, error) {
	query := `SELECT ` + variationColumns + ` FROM variations WHERE campaign_id=$1 AND variation_number=$2`
	var v model.Variation
	err := r.DB.QueryRow(query, campaignID, number).Scan(
		&v.ID, &v.CampaignID, &v.Text, &v.SourceTemplate, &v.Number, &v.ParamsSnapshot, &v.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

var _ VariationRepositoryInterface = (*VariationRepository)(nil)
