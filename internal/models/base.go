// internal/models/base.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel gives every collection a UUID key and timestamps.
type BaseModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate assigns an ID when the caller did not.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// All returns every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Genre{},
		&ToneOption{},
		&MovieFormat{},
		&MovieStyle{},
		&Series{},
		&AudienceDemographic{},
		&CentralTheme{},
		&MoodDescriptor{},
		&CinematographyStyle{},
		&Project{},
		&InitialConcept{},
		&FundamentalData{},
		&Story{},
		&StoryStructure{},
		&CharacterReference{},
		&Media{},
		&CharacterImageMetadata{},
	}
}
