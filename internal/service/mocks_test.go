package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	appErrors "github.com/wablast/wablast-backend/internal/errors"
	"github.com/wablast/wablast-backend/internal/model"
	"github.com/wablast/wablast-backend/internal/rewrite"
	"github.com/wablast/wablast-backend/internal/transport"
)

// --- Mock repositories ---

type mockCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[int]*model.Campaign
	statuses  []string
	totals    []int
}

func newMockCampaignRepo(campaigns ...*model.Campaign) *mockCampaignRepo {
	m := &mockCampaignRepo{campaigns: map[int]*model.Campaign{}}
	for _, c := range campaigns {
		m.campaigns[c.ID] = c
	}
	return m
}

func (m *mockCampaignRepo) Create(c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = len(m.campaigns) + 1
	c.CreatedAt = time.Now()
	m.campaigns[c.ID] = c
	return nil
}

func (m *mockCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return c, nil
}

func (m *mockCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range m.campaigns {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (m *mockCampaignRepo) UpdateStatus(campaignID int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[campaignID]; ok {
		c.Status = status
	}
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *mockCampaignRepo) SetSelectedVariation(campaignID int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[campaignID]; ok {
		c.SelectedVariation = text
	}
	return nil
}

func (m *mockCampaignRepo) SetTotalRecipients(campaignID, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[campaignID]; ok {
		c.TotalRecipients = total
	}
	m.totals = append(m.totals, total)
	return nil
}

func (m *mockCampaignRepo) ListDue(now time.Time) ([]*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	due := []*model.Campaign{}
	for _, c := range m.campaigns {
		if c.Status == model.CampaignStatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			due = append(due, c)
		}
	}
	return due, nil
}

type mockRecipientRepo struct {
	mu         sync.Mutex
	recipients []*model.Recipient
	nextID     int
}

func (m *mockRecipientRepo) BulkInsert(campaignID int, recipients []*model.Recipient) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := 0
	for _, rec := range recipients {
		exists := false
		for _, existing := range m.recipients {
			if existing.CampaignID == campaignID && existing.Phone == rec.Phone {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		m.nextID++
		cp := *rec
		cp.ID = m.nextID
		m.recipients = append(m.recipients, &cp)
		stored++
	}
	return stored, nil
}

func (m *mockRecipientRepo) ListByCampaign(campaignID int) ([]*model.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Recipient{}
	for _, r := range m.recipients {
		if r.CampaignID == campaignID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRecipientRepo) ListPending(campaignID int) ([]*model.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Recipient{}
	for _, r := range m.recipients {
		if r.CampaignID == campaignID && r.Status == model.StatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRecipientRepo) UpdateStatus(campaignID int, phone, status, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recipients {
		if r.CampaignID == campaignID && r.Phone == phone {
			r.Status = status
			r.FailureReason = reason
			if status == model.StatusSent {
				now := time.Now()
				r.SentAt = &now
			}
		}
	}
	return nil
}

func (m *mockRecipientRepo) CountByStatus(campaignID int) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := map[string]int{"pending": 0, "sent": 0, "failed": 0}
	for _, r := range m.recipients {
		if r.CampaignID == campaignID {
			stats[r.Status]++
		}
	}
	return stats, nil
}

type mockVariationRepo struct {
	mu         sync.Mutex
	variations []*model.Variation
}

func (m *mockVariationRepo) Create(v *model.Variation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.variations {
		if existing.CampaignID == v.CampaignID && existing.Number == v.Number {
			return fmt.Errorf("duplicate variation number %d for campaign %d", v.Number, v.CampaignID)
		}
	}
	v.ID = len(m.variations) + 1
	v.CreatedAt = time.Now()
	m.variations = append(m.variations, v)
	return nil
}

func (m *mockVariationRepo) CountByCampaign(campaignID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, v := range m.variations {
		if v.CampaignID == campaignID {
			count++
		}
	}
	return count, nil
}

func (m *mockVariationRepo) ListRecent(campaignID, limit int) ([]*model.Variation, error) {
	all, _ := m.ListByCampaign(campaignID)
	// newest first
	out := []*model.Variation{}
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *mockVariationRepo) ListByCampaign(campaignID int) ([]*model.Variation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Variation{}
	for _, v := range m.variations {
		if v.CampaignID == campaignID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *mockVariationRepo) GetByNumber(campaignID, number int) (*model.Variation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.variations {
		if v.CampaignID == campaignID && v.Number == number {
			return v, nil
		}
	}
	return nil, nil
}

type mockSuppressionRepo struct {
	mu     sync.Mutex
	phones map[string]bool
}

func newMockSuppressionRepo(phones ...string) *mockSuppressionRepo {
	m := &mockSuppressionRepo{phones: map[string]bool{}}
	for _, p := range phones {
		m.phones[p] = true
	}
	return m
}

func (m *mockSuppressionRepo) Add(phone, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phones[phone] = true
	return nil
}

func (m *mockSuppressionRepo) Remove(phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.phones, phone)
	return nil
}

func (m *mockSuppressionRepo) IsSuppressed(phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phones[phone], nil
}

func (m *mockSuppressionRepo) ListAll() ([]*model.SuppressedNumber, error) {
	return []*model.SuppressedNumber{}, nil
}

// --- Mock collaborators ---

type mockRewriter struct {
	mu      sync.Mutex
	calls   int
	fn      func(call int, req rewrite.Request) (string, error)
	history [][]string
}

func (m *mockRewriter) Rewrite(ctx context.Context, req rewrite.Request) (string, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.history = append(m.history, append([]string{}, req.History...))
	fn := m.fn
	m.mu.Unlock()

	if fn != nil {
		return fn(call, req)
	}
	return fmt.Sprintf("%s (rewrite %d)", req.Template, call), nil
}

type sentMessage struct {
	Phone   string
	Text    string
	Buttons []model.Button
	At      time.Time
}

type mockTransport struct {
	mu           sync.Mutex
	sent         []sentMessage
	failPhones   map[string]bool
	disconnected bool
}

func (m *mockTransport) record(phone, text string, buttons []model.Button) (*transport.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPhones[phone] {
		return nil, fmt.Errorf("send rejected for %s", phone)
	}
	m.sent = append(m.sent, sentMessage{Phone: phone, Text: text, Buttons: buttons, At: time.Now()})
	return &transport.Receipt{MessageID: fmt.Sprintf("msg-%d", len(m.sent)), Timestamp: time.Now()}, nil
}

func (m *mockTransport) SendText(ctx context.Context, phone, text string) (*transport.Receipt, error) {
	return m.record(phone, text, nil)
}

func (m *mockTransport) SendButtons(ctx context.Context, phone, text string, buttons []model.Button) (*transport.Receipt, error) {
	return m.record(phone, text, buttons)
}

func (m *mockTransport) Connected() bool { return !m.disconnected }

func (m *mockTransport) sentMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage{}, m.sent...)
}
