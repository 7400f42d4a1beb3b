package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Crop struct {
	ID          primitive.ObjectID   `json:"_id,omitempty" bson:"_id,omitempty"`
	Name        string               `json:"name" bson:"name"`
	Category    string               `json:"category" bson:"category"`
	Description string               `json:"description,omitempty" bson:"description,omitempty"`
	Image       string               `json:"image,omitempty" bson:"image,omitempty"`
	CommonPests []primitive.ObjectID `json:"commonPests" bson:"common_pests"`
	CreatedAt   time.Time            `json:"createdAt" bson:"created_at"`
}

// PopulatedCrop is a Crop with its pest references resolved, in the stored order.
type PopulatedCrop struct {
	ID          primitive.ObjectID `json:"_id"`
	Name        string             `json:"name"`
	Category    string             `json:"category"`
	Description string             `json:"description,omitempty"`
	Image       string             `json:"image,omitempty"`
	CommonPests []Pest             `json:"commonPests"`
	CreatedAt   time.Time          `json:"createdAt"`
}

func (c *Crop) Populate(pests []Pest) PopulatedCrop {
	if pests == nil {
		pests = []Pest{}
	}
	return PopulatedCrop{
		ID:          c.ID,
		Name:        c.Name,
		Category:    c.Category,
		Description: c.Description,
		Image:       c.Image,
		CommonPests: pests,
		CreatedAt:   c.CreatedAt,
	}
}

type CropInput struct {
	Name        string   `json:"name" validate:"required"`
	Category    string   `json:"category" validate:"required"`
	Description string   `json:"description"`
	Image       string   `json:"image" validate:"omitempty,uri"`
	CommonPests []string `json:"commonPests" validate:"dive,mongodb"`
}

// CropUpdate carries only the fields present in a PUT body.
type CropUpdate struct {
	Name        *string   `json:"name" validate:"omitempty,min=1"`
	Category    *string   `json:"category" validate:"omitempty,min=1"`
	Description *string   `json:"description"`
	Image       *string   `json:"image"`
	CommonPests *[]string `json:"commonPests" validate:"omitempty,dive,mongodb"`
}
