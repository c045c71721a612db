package service

import (
	"errors"
	"testing"

	appErrors "github.com/wablast/wablast-backend/internal/errors"
	"github.com/wablast/wablast-backend/internal/model"
)

func newIngestService() (*IngestService, *mockCampaignRepo, *mockRecipientRepo) {
	campaigns := newMockCampaignRepo(&model.Campaign{ID: 1, Name: "launch", Template: "Hi {{name}}"})
	recipients := &mockRecipientRepo{}
	return &IngestService{Campaigns: campaigns, Recipients: recipients}, campaigns, recipients
}

func TestIngestDedupsByCanonicalPhoneFirstWins(t *testing.T) {
	svc, campaigns, recipients := newIngestService()

	result, err := svc.Ingest(1, []IngestRow{
		{Name: "A", Phone: "9190000001"},
		{Name: "B", Phone: "+91 9000-0001"}, // same digits as A
		{Name: "C", Phone: "9190000002"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stored != 2 {
		t.Errorf("expected 2 stored, got %d", result.Stored)
	}
	if result.Dropped != 1 {
		t.Errorf("expected 1 dropped, got %d", result.Dropped)
	}

	stored, _ := recipients.ListByCampaign(1)
	if len(stored) != 2 {
		t.Fatalf("expected 2 recipients in store, got %d", len(stored))
	}
	if stored[0].Name != "A" {
		t.Errorf("expected first occurrence to win, got %q", stored[0].Name)
	}
	if stored[0].Phone != "9190000001" {
		t.Errorf("expected canonical phone, got %q", stored[0].Phone)
	}

	campaign, _ := campaigns.GetByID(1)
	if campaign.TotalRecipients != 2 {
		t.Errorf("expected recipient count updated to 2, got %d", campaign.TotalRecipients)
	}
}

func TestIngestRejectsBatchOnMissingFields(t *testing.T) {
	svc, _, recipients := newIngestService()

	_, err := svc.Ingest(1, []IngestRow{
		{Name: "A", Phone: "9190000001"},
		{Name: "", Phone: "9190000002"},
	})
	var vErr *appErrors.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Row != 1 {
		t.Errorf("expected row 1 flagged, got %d", vErr.Row)
	}

	stored, _ := recipients.ListByCampaign(1)
	if len(stored) != 0 {
		t.Errorf("expected nothing partially stored, got %d rows", len(stored))
	}
}

func TestIngestRejectsPhoneWithNoDigits(t *testing.T) {
	svc, _, _ := newIngestService()

	_, err := svc.Ingest(1, []IngestRow{{Name: "A", Phone: "n/a"}})
	var vErr *appErrors.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestIngestUnknownCampaign(t *testing.T) {
	svc, _, _ := newIngestService()

	_, err := svc.Ingest(42, []IngestRow{{Name: "A", Phone: "9190000001"}})
	var nfErr *appErrors.ErrCampaignNotFound
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected campaign not found, got %v", err)
	}
}

func TestIngestReturnsSample(t *testing.T) {
	svc, _, _ := newIngestService()

	rows := []IngestRow{}
	for i := 0; i < 8; i++ {
		rows = append(rows, IngestRow{Name: "N", Phone: "919000000" + string(rune('0'+i))})
	}
	result, err := svc.Ingest(1, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Sample) != sampleSize {
		t.Errorf("expected sample of %d, got %d", sampleSize, len(result.Sample))
	}
}
