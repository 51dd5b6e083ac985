package repository

import (
	"fmt"

	"chatcore/pkg/database"

	"gorm.io/gorm"
)

// InitSchema migrates every core table. On postgres it also installs the
// check constraints that back the presence and delivery invariants.
func InitSchema(db *gorm.DB) error {
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	constraints := []string{
		`DO $$ BEGIN
			ALTER TABLE presence_records ADD CONSTRAINT chk_presence_connection_count
				CHECK (connection_count >= 0 AND is_online = (connection_count > 0));
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE delivery_statuses ADD CONSTRAINT chk_delivery_status
				CHECK (status IN ('sent', 'delivered', 'read'));
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE memberships ADD CONSTRAINT chk_membership_role
				CHECK (role IN ('owner', 'admin', 'moderator', 'member'));
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
	}
	for _, stmt := range constraints {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to add constraint: %w", err)
		}
	}

	// Unread counting and history scans filter visible rows per conversation.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_visible
		ON messages (conversation_id, created_at DESC) WHERE is_deleted = false`).Error; err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}
