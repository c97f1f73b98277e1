package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

type CollectionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.Collection) (*types.Collection, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Collection, error)
	GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Collection, error)
	GetByUserAndName(ctx context.Context, tx *gorm.DB, userID uuid.UUID, name string) (*types.Collection, error)
	DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type collectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCollectionRepo(db *gorm.DB, baseLog *logger.Logger) CollectionRepo {
	return &collectionRepo{db: db, log: baseLog.With("repo", "CollectionRepo")}
}

func (r *collectionRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Collection) (*types.Collection, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *collectionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Collection, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Collection
	if err := transaction.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *collectionRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Collection, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Collection
	if userID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *collectionRepo) GetByUserAndName(ctx context.Context, tx *gorm.DB, userID uuid.UUID, name string) (*types.Collection, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.Collection
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		First(&out).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *collectionRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).Where("id = ?", id).Delete(&types.Collection{}).Error
}
