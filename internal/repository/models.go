package repository

import (
	"time"

	"github.com/mailpilot/campaign-engine/internal/domain"
)

// CampaignModel is the persistence model for the campaigns table.
type CampaignModel struct {
	ID             string                `gorm:"type:uuid;primaryKey"`
	OrganizationID string                `gorm:"type:uuid;not null"`
	Name           string                `gorm:"type:varchar(255);not null"`
	Status         domain.CampaignStatus `gorm:"type:varchar(20);not null"`
	TemplateID     *string               `gorm:"type:uuid"`
	SubjectLine    string                `gorm:"type:varchar(500)"`
	ScheduledAt    *time.Time            `gorm:"type:timestamptz"`
	SentAt         *time.Time            `gorm:"type:timestamptz"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (CampaignModel) TableName() string {
	return "campaigns"
}

// TargetRuleModel is the persistence model for campaign_target_rules.
type TargetRuleModel struct {
	ID                  string   `gorm:"type:uuid;primaryKey"`
	CampaignID          string   `gorm:"type:uuid;not null;uniqueIndex"`
	OrganizationID      string   `gorm:"type:uuid;not null"`
	IncludeTags         []string `gorm:"type:jsonb;serializer:json"`
	ExcludeTags         []string `gorm:"type:jsonb;serializer:json"`
	ExcludeCountries    []string `gorm:"type:jsonb;serializer:json"`
	ExcludeUnsubscribed bool     `gorm:"not null;default:true"`
	ExcludeInactive     bool     `gorm:"not null;default:true"`
	ExcludeBounced      bool     `gorm:"not null;default:false"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (TargetRuleModel) TableName() string {
	return "campaign_target_rules"
}

// RecipientModel is the persistence model for campaign_recipients.
type RecipientModel struct {
	ID             string                 `gorm:"type:uuid;primaryKey"`
	CampaignID     string                 `gorm:"type:uuid;not null;uniqueIndex:idx_recipients_campaign_contact,priority:1"`
	ContactID      string                 `gorm:"type:uuid;not null;uniqueIndex:idx_recipients_campaign_contact,priority:2"`
	OrganizationID string                 `gorm:"type:uuid;not null"`
	Status         domain.RecipientStatus `gorm:"type:varchar(20);not null"`
	SentAt         *time.Time             `gorm:"type:timestamptz"`
	BouncedAt      *time.Time             `gorm:"type:timestamptz"`
	OpenedAt       *time.Time             `gorm:"type:timestamptz"`
	ClickedAt      *time.Time             `gorm:"type:timestamptz"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (RecipientModel) TableName() string {
	return "campaign_recipients"
}

// EmailEventModel is the persistence model for the append-only email_events log.
type EmailEventModel struct {
	ID             string           `gorm:"type:uuid;primaryKey"`
	CampaignID     string           `gorm:"type:uuid;not null"`
	RecipientID    string           `gorm:"type:uuid;not null"`
	OrganizationID string           `gorm:"type:uuid;not null"`
	Kind           domain.EventKind `gorm:"type:varchar(10);not null;column:event_type"`
	LinkURL        *string          `gorm:"type:text"`
	OccurredAt     time.Time        `gorm:"type:timestamptz;not null"`
}

func (EmailEventModel) TableName() string {
	return "email_events"
}

// ContactModel maps the contact store's table. This pipeline only reads it;
// contact CRUD and import live in a separate service.
type ContactModel struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	OrganizationID string  `gorm:"type:uuid;not null"`
	Email          *string `gorm:"type:varchar(255)"`
	FirstName      *string `gorm:"type:varchar(255)"`
	LastName       *string `gorm:"type:varchar(255)"`
	Country        *string `gorm:"type:varchar(10)"`
	IsActive       bool
	IsSubscribed   bool
	DeletedAt      *time.Time `gorm:"type:timestamptz"`
}

func (ContactModel) TableName() string {
	return "contacts"
}

// TemplateModel maps the template store's table, read-only here.
type TemplateModel struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	OrganizationID string  `gorm:"type:uuid;not null"`
	SubjectLine    *string `gorm:"type:varchar(500)"`
	ContentHTML    *string `gorm:"type:text"`
}

func (TemplateModel) TableName() string {
	return "templates"
}

func campaignModelFromDomain(c *domain.Campaign) *CampaignModel {
	if c == nil {
		return nil
	}

	return &CampaignModel{
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		Name:           c.Name,
		Status:         c.Status,
		TemplateID:     c.TemplateID,
		SubjectLine:    c.SubjectLine,
		ScheduledAt:    c.ScheduledAt,
		SentAt:         c.SentAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func campaignModelToDomain(m *CampaignModel) *domain.Campaign {
	if m == nil {
		return nil
	}

	return &domain.Campaign{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		Name:           m.Name,
		Status:         m.Status,
		TemplateID:     m.TemplateID,
		SubjectLine:    m.SubjectLine,
		ScheduledAt:    m.ScheduledAt,
		SentAt:         m.SentAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func targetRuleModelFromDomain(r *domain.TargetRule) *TargetRuleModel {
	if r == nil {
		return nil
	}

	return &TargetRuleModel{
		ID:                  r.ID,
		CampaignID:          r.CampaignID,
		OrganizationID:      r.OrganizationID,
		IncludeTags:         r.IncludeTags,
		ExcludeTags:         r.ExcludeTags,
		ExcludeCountries:    r.ExcludeCountries,
		ExcludeUnsubscribed: r.ExcludeUnsubscribed,
		ExcludeInactive:     r.ExcludeInactive,
		ExcludeBounced:      r.ExcludeBounced,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func targetRuleModelToDomain(m *TargetRuleModel) *domain.TargetRule {
	if m == nil {
		return nil
	}

	return &domain.TargetRule{
		ID:                  m.ID,
		CampaignID:          m.CampaignID,
		OrganizationID:      m.OrganizationID,
		IncludeTags:         m.IncludeTags,
		ExcludeTags:         m.ExcludeTags,
		ExcludeCountries:    m.ExcludeCountries,
		ExcludeUnsubscribed: m.ExcludeUnsubscribed,
		ExcludeInactive:     m.ExcludeInactive,
		ExcludeBounced:      m.ExcludeBounced,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func recipientModelFromDomain(r *domain.Recipient) *RecipientModel {
	if r == nil {
		return nil
	}

	return &RecipientModel{
		ID:             r.ID,
		CampaignID:     r.CampaignID,
		ContactID:      r.ContactID,
		OrganizationID: r.OrganizationID,
		Status:         r.Status,
		SentAt:         r.SentAt,
		BouncedAt:      r.BouncedAt,
		OpenedAt:       r.OpenedAt,
		ClickedAt:      r.ClickedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func recipientModelToDomain(m *RecipientModel) *domain.Recipient {
	if m == nil {
		return nil
	}

	return &domain.Recipient{
		ID:             m.ID,
		CampaignID:     m.CampaignID,
		ContactID:      m.ContactID,
		OrganizationID: m.OrganizationID,
		Status:         m.Status,
		SentAt:         m.SentAt,
		BouncedAt:      m.BouncedAt,
		OpenedAt:       m.OpenedAt,
		ClickedAt:      m.ClickedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func eventModelFromDomain(e *domain.EmailEvent) *EmailEventModel {
	if e == nil {
		return nil
	}

	return &EmailEventModel{
		ID:             e.ID,
		CampaignID:     e.CampaignID,
		RecipientID:    e.RecipientID,
		OrganizationID: e.OrganizationID,
		Kind:           e.Kind,
		LinkURL:        e.LinkURL,
		OccurredAt:     e.OccurredAt,
	}
}

func eventModelToDomain(m *EmailEventModel) *domain.EmailEvent {
	if m == nil {
		return nil
	}

	return &domain.EmailEvent{
		ID:             m.ID,
		CampaignID:     m.CampaignID,
		RecipientID:    m.RecipientID,
		OrganizationID: m.OrganizationID,
		Kind:           m.Kind,
		LinkURL:        m.LinkURL,
		OccurredAt:     m.OccurredAt,
	}
}

func contactModelToDomain(m *ContactModel) domain.Contact {
	c := domain.Contact{ID: m.ID}
	if m.Email != nil {
		c.Email = *m.Email
	}
	if m.FirstName != nil {
		c.FirstName = *m.FirstName
	}
	if m.LastName != nil {
		c.LastName = *m.LastName
	}
	if m.Country != nil {
		c.Country = *m.Country
	}
	return c
}
