package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ReviewLog records one review attempt. Rows are immutable once created.
type ReviewLog struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User        *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	FlashcardID uuid.UUID  `gorm:"type:uuid;not null;index" json:"flashcard_id"`
	Flashcard   *Flashcard `gorm:"constraint:OnDelete:CASCADE;foreignKey:FlashcardID;references:ID" json:"flashcard,omitempty"`
	IsCorrect   bool       `gorm:"column:is_correct;not null" json:"is_correct"`
	Confidence  int        `gorm:"column:confidence;not null;default:0" json:"confidence"`
	ReviewedAt  time.Time  `gorm:"not null;default:now();index" json:"reviewed_at"`
}

func (ReviewLog) TableName() string {
	return "review_log"
}

// ReviewAssist holds the generated help for one failed review: a grounded
// explanation, its source citations, and suggested corrective flashcards.
// Exists only when the review was incorrect and explanation generation
// succeeded.
type ReviewAssist struct {
	ID                   uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ReviewLogID          uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"review_log_id"`
	ReviewLog            *ReviewLog     `gorm:"constraint:OnDelete:CASCADE;foreignKey:ReviewLogID;references:ID" json:"review_log,omitempty"`
	Explanation          string         `gorm:"column:explanation;not null" json:"explanation"`
	SourceChunks         datatypes.JSON `gorm:"type:jsonb;column:source_chunks" json:"source_chunks"`
	CorrectiveFlashcards datatypes.JSON `gorm:"type:jsonb;column:corrective_flashcards" json:"corrective_flashcards"`
	ModelUsed            string         `gorm:"column:model_used" json:"model_used"`
	TokensUsed           int            `gorm:"column:tokens_used;not null;default:0" json:"tokens_used"`
	CreatedAt            time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (ReviewAssist) TableName() string {
	return "review_assist"
}
