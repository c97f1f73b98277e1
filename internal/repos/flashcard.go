package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

type FlashcardRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.Flashcard) (*types.Flashcard, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Flashcard, error)
	GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Flashcard, error)
	GetByCollection(ctx context.Context, tx *gorm.DB, collectionID uuid.UUID) ([]*types.Flashcard, error)
	SearchByUserAndTopic(ctx context.Context, tx *gorm.DB, userID uuid.UUID, topic string, limit int) ([]*types.Flashcard, error)
	CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type flashcardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFlashcardRepo(db *gorm.DB, baseLog *logger.Logger) FlashcardRepo {
	return &flashcardRepo{db: db, log: baseLog.With("repo", "FlashcardRepo")}
}

func (r *flashcardRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Flashcard) (*types.Flashcard, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row.CardType == "" {
		row.CardType = types.CardTypeStandard
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *flashcardRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Flashcard, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Flashcard
	if err := transaction.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *flashcardRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Flashcard, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Flashcard
	if userID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *flashcardRepo) GetByCollection(ctx context.Context, tx *gorm.DB, collectionID uuid.UUID) ([]*types.Flashcard, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Flashcard
	if collectionID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("collection_id = ?", collectionID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *flashcardRepo) SearchByUserAndTopic(ctx context.Context, tx *gorm.DB, userID uuid.UUID, topic string, limit int) ([]*types.Flashcard, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Flashcard
	if userID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + topic + "%"
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND (title ILIKE ? OR content ILIKE ?)", userID, pattern, pattern).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *flashcardRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil {
		return 0, nil
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.Flashcard{}).
		Where("user_id = ?", userID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *flashcardRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).Where("id = ?", id).Delete(&types.Flashcard{}).Error
}
