package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/mailpilot/campaign-engine/internal/repository"
	"gorm.io/gorm"
)

// Migrate creates the tables this pipeline owns. The contact, tag and
// template tables belong to the CRUD service and are not migrated here.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_campaigns",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.CampaignModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_campaigns_org_status ON campaigns (organization_id, status, created_at)`,
					`CREATE INDEX IF NOT EXISTS idx_campaigns_due ON campaigns (scheduled_at) WHERE status = 'scheduled'`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.CampaignModel{})
			},
		},
		createTargetRulesTable(),
		createRecipientsTable(),
		createEmailEventsTable(),
	})

	return m.Migrate()
}
