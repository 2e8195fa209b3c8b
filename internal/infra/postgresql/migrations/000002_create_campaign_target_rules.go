package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/mailpilot/campaign-engine/internal/repository"
	"gorm.io/gorm"
)

func createTargetRulesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_campaign_target_rules",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.TargetRuleModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TargetRuleModel{})
		},
	}
}
