package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/mailpilot/campaign-engine/internal/repository"
	"gorm.io/gorm"
)

func createEmailEventsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_email_events",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.EmailEventModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_email_events_campaign ON email_events (campaign_id, occurred_at)`,
				`CREATE INDEX IF NOT EXISTS idx_email_events_recipient ON email_events (recipient_id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.EmailEventModel{})
		},
	}
}
