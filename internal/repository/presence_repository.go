package repository

import (
	"context"
	"time"

	"chatcore/internal/domain/presence"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresPresenceRepository struct {
	db *gorm.DB
}

func NewPresenceRepository(db *gorm.DB) PresenceRepository {
	return &PostgresPresenceRepository{db: db}
}

func (r *PostgresPresenceRepository) LockOrCreate(ctx context.Context, userID uuid.UUID, now time.Time) (presence.Record, error) {
	fresh := presence.NewRecord(userID, now)
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return presence.Record{}, translate(err)
	}

	var rec presence.Record
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&rec).Error
	if err != nil {
		return presence.Record{}, translate(err)
	}
	return rec, nil
}

func (r *PostgresPresenceRepository) Save(ctx context.Context, rec presence.Record) error {
	return translate(r.db.WithContext(ctx).Save(&rec).Error)
}

func (r *PostgresPresenceRepository) Get(ctx context.Context, userID uuid.UUID) (presence.Record, error) {
	var rec presence.Record
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if err != nil {
		return presence.Record{}, translate(err)
	}
	return rec, nil
}
