package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

type ReviewAssistRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ReviewAssist) (*types.ReviewAssist, error)
	GetByReviewLogID(ctx context.Context, tx *gorm.DB, reviewLogID uuid.UUID) (*types.ReviewAssist, error)
}

type reviewAssistRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewAssistRepo(db *gorm.DB, baseLog *logger.Logger) ReviewAssistRepo {
	return &reviewAssistRepo{db: db, log: baseLog.With("repo", "ReviewAssistRepo")}
}

func (r *reviewAssistRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ReviewAssist) (*types.ReviewAssist, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *reviewAssistRepo) GetByReviewLogID(ctx context.Context, tx *gorm.DB, reviewLogID uuid.UUID) (*types.ReviewAssist, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if reviewLogID == uuid.Nil {
		return nil, nil
	}
	var out types.ReviewAssist
	if err := transaction.WithContext(ctx).
		Where("review_log_id = ?", reviewLogID).
		First(&out).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}
