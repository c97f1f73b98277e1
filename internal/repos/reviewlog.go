package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

type ReviewLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ReviewLog) (*types.ReviewLog, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ReviewLog, error)
	// GetByFlashcard returns logs for one card, most recent first.
	GetByFlashcard(ctx context.Context, tx *gorm.DB, flashcardID uuid.UUID) ([]*types.ReviewLog, error)
	CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	CountCorrectByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
}

type reviewLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewLogRepo(db *gorm.DB, baseLog *logger.Logger) ReviewLogRepo {
	return &reviewLogRepo{db: db, log: baseLog.With("repo", "ReviewLogRepo")}
}

func (r *reviewLogRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ReviewLog) (*types.ReviewLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row.ReviewedAt.IsZero() {
		row.ReviewedAt = time.Now()
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *reviewLogRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ReviewLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.ReviewLog
	if err := transaction.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *reviewLogRepo) GetByFlashcard(ctx context.Context, tx *gorm.DB, flashcardID uuid.UUID) ([]*types.ReviewLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ReviewLog
	if flashcardID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("flashcard_id = ?", flashcardID).
		Order("reviewed_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewLogRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil {
		return 0, nil
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.ReviewLog{}).
		Where("user_id = ?", userID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *reviewLogRepo) CountCorrectByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil {
		return 0, nil
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.ReviewLog{}).
		Where("user_id = ? AND is_correct = ?", userID, true).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
