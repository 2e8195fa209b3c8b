package repository

import (
	"context"
	"errors"

	"github.com/mailpilot/campaign-engine/internal/domain"
	"gorm.io/gorm"
)

// ContactStore is the read-only slice of the contact service this pipeline
// needs for audience resolution and template variables.
type ContactStore interface {
	// ListEligible returns non-deleted contacts with an email address,
	// optionally restricted to active and/or subscribed contacts.
	ListEligible(ctx context.Context, organizationID string, excludeInactive, excludeUnsubscribed bool) ([]domain.Contact, error)
	// ContactIDsWithAllTags returns contacts holding every named tag. A tag
	// name that does not exist makes the result empty.
	ContactIDsWithAllTags(ctx context.Context, organizationID string, tags []string) (map[string]struct{}, error)
	// ContactIDsWithAnyTag returns contacts holding at least one named tag.
	ContactIDsWithAnyTag(ctx context.Context, organizationID string, tags []string) (map[string]struct{}, error)
	// BouncedContactIDs returns contacts with a prior bounced recipient row
	// anywhere in the organization.
	BouncedContactIDs(ctx context.Context, organizationID string) (map[string]struct{}, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Contact, error)
}

// TemplateStore is read-only access to stored subject/body templates.
type TemplateStore interface {
	GetByID(ctx context.Context, organizationID, id string) (*domain.Template, error)
}

type GormContactStore struct {
	db *gorm.DB
}

var _ ContactStore = (*GormContactStore)(nil)

func NewGormContactStore(db *gorm.DB) *GormContactStore {
	return &GormContactStore{db: db}
}

func (s *GormContactStore) ListEligible(ctx context.Context, organizationID string, excludeInactive, excludeUnsubscribed bool) ([]domain.Contact, error) {
	query := s.db.WithContext(ctx).
		Model(&ContactModel{}).
		Where("organization_id = ? AND email IS NOT NULL AND deleted_at IS NULL", organizationID)

	if excludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if excludeUnsubscribed {
		query = query.Where("is_subscribed = ?", true)
	}

	var models []ContactModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	contacts := make([]domain.Contact, 0, len(models))
	for i := range models {
		c := contactModelToDomain(&models[i])
		if c.HasEmail() {
			contacts = append(contacts, c)
		}
	}

	return contacts, nil
}

func (s *GormContactStore) ContactIDsWithAllTags(ctx context.Context, organizationID string, tags []string) (map[string]struct{}, error) {
	tags = domain.CleanTags(tags)
	if len(tags) == 0 {
		return map[string]struct{}{}, nil
	}

	// Contacts must hold every listed tag. A missing tag name means no
	// contact can match, which COUNT(DISTINCT) against len(tags) enforces.
	var ids []string
	err := s.db.WithContext(ctx).
		Table("contact_tag_assignments AS a").
		Select("a.contact_id").
		Joins("JOIN contact_tags t ON t.id = a.tag_id").
		Where("t.organization_id = ? AND t.name IN ?", organizationID, tags).
		Group("a.contact_id").
		Having("COUNT(DISTINCT t.id) = ?", len(tags)).
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}

	return toIDSet(ids), nil
}

func (s *GormContactStore) ContactIDsWithAnyTag(ctx context.Context, organizationID string, tags []string) (map[string]struct{}, error) {
	tags = domain.CleanTags(tags)
	if len(tags) == 0 {
		return map[string]struct{}{}, nil
	}

	var ids []string
	err := s.db.WithContext(ctx).
		Table("contact_tag_assignments AS a").
		Select("DISTINCT a.contact_id").
		Joins("JOIN contact_tags t ON t.id = a.tag_id").
		Where("t.organization_id = ? AND t.name IN ?", organizationID, tags).
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}

	return toIDSet(ids), nil
}

func (s *GormContactStore) BouncedContactIDs(ctx context.Context, organizationID string) (map[string]struct{}, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&RecipientModel{}).
		Select("DISTINCT contact_id").
		Where("organization_id = ? AND status = ?", organizationID, domain.RecipientStatusBounced).
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}

	return toIDSet(ids), nil
}

func (s *GormContactStore) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Contact, error) {
	if len(ids) == 0 {
		return map[string]domain.Contact{}, nil
	}

	var models []ContactModel
	err := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	contacts := make(map[string]domain.Contact, len(models))
	for i := range models {
		contacts[models[i].ID] = contactModelToDomain(&models[i])
	}

	return contacts, nil
}

func toIDSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

type GormTemplateStore struct {
	db *gorm.DB
}

var _ TemplateStore = (*GormTemplateStore)(nil)

func NewGormTemplateStore(db *gorm.DB) *GormTemplateStore {
	return &GormTemplateStore{db: db}
}

func (s *GormTemplateStore) GetByID(ctx context.Context, organizationID, id string) (*domain.Template, error) {
	var model TemplateModel
	err := s.db.WithContext(ctx).
		First(&model, "id = ? AND organization_id = ?", id, organizationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	tpl := &domain.Template{ID: model.ID}
	if model.SubjectLine != nil {
		tpl.SubjectLine = *model.SubjectLine
	}
	if model.ContentHTML != nil {
		tpl.ContentHTML = *model.ContentHTML
	}
	return tpl, nil
}
