package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/mailpilot/campaign-engine/internal/repository"
	"gorm.io/gorm"
)

func createRecipientsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_campaign_recipients",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.RecipientModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_recipients_campaign_status ON campaign_recipients (campaign_id, status, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_recipients_org_bounced ON campaign_recipients (organization_id) WHERE status = 'bounced'`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.RecipientModel{})
		},
	}
}
