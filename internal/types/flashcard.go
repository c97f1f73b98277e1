package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	CardTypeStandard = "standard"
	CardTypeCloze    = "cloze"
	CardTypeReverse  = "reverse"
	CardTypeMCQ      = "mcq"
)

// ValidCardType reports whether t is one of the closed card-type set.
func ValidCardType(t string) bool {
	switch t {
	case CardTypeStandard, CardTypeCloze, CardTypeReverse, CardTypeMCQ:
		return true
	default:
		return false
	}
}

type Flashcard struct {
	ID               uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID           uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	User             *User       `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Title            string      `gorm:"column:title" json:"title"`
	Content          string      `gorm:"column:content;not null" json:"content"`
	CardType         string      `gorm:"column:card_type;not null;default:'standard'" json:"card_type"`
	CollectionID     *uuid.UUID  `gorm:"type:uuid;index" json:"collection_id,omitempty"`
	Collection       *Collection `gorm:"constraint:OnDelete:SET NULL;foreignKey:CollectionID;references:ID" json:"collection,omitempty"`
	SourceDocumentID *uuid.UUID  `gorm:"type:uuid;index" json:"source_document_id,omitempty"`
	SourceDocument   *Document   `gorm:"constraint:OnDelete:SET NULL;foreignKey:SourceDocumentID;references:ID" json:"source_document,omitempty"`
	IsCorrective     bool        `gorm:"column:is_corrective;not null;default:false" json:"is_corrective"`
	CreatedAt        time.Time   `gorm:"not null;default:now();index" json:"created_at"`
}

func (Flashcard) TableName() string {
	return "flashcard"
}
