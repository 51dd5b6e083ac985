package database

import (
	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/message"
	"chatcore/internal/domain/presence"

	"gorm.io/gorm"
)

// Models lists every table owned by the messaging core, parents first.
func Models() []interface{} {
	return []interface{}{
		&conversation.Conversation{},
		&conversation.Membership{},
		&message.Message{},
		&message.DeliveryStatus{},
		&message.Reaction{},
		&presence.Record{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// Truncate removes every row from the core tables, children first.
func Truncate(db *gorm.DB) error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(models[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
