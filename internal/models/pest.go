package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Pest struct {
	ID             primitive.ObjectID   `json:"_id,omitempty" bson:"_id,omitempty"`
	Name           string               `json:"name" bson:"name"`
	ScientificName string               `json:"scientificName,omitempty" bson:"scientific_name,omitempty"`
	Description    string               `json:"description,omitempty" bson:"description,omitempty"`
	Symptoms       []string             `json:"symptoms" bson:"symptoms"`
	Management     string               `json:"management,omitempty" bson:"management,omitempty"`
	Images         []string             `json:"images" bson:"images"`
	AffectedCrops  []primitive.ObjectID `json:"affectedCrops" bson:"affected_crops"`
	CreatedAt      time.Time            `json:"createdAt" bson:"created_at"`
}

type PopulatedPest struct {
	ID             primitive.ObjectID `json:"_id"`
	Name           string             `json:"name"`
	ScientificName string             `json:"scientificName,omitempty"`
	Description    string             `json:"description,omitempty"`
	Symptoms       []string           `json:"symptoms"`
	Management     string             `json:"management,omitempty"`
	Images         []string           `json:"images"`
	AffectedCrops  []Crop             `json:"affectedCrops"`
	CreatedAt      time.Time          `json:"createdAt"`
}

func (p *Pest) Populate(crops []Crop) PopulatedPest {
	if crops == nil {
		crops = []Crop{}
	}
	return PopulatedPest{
		ID:             p.ID,
		Name:           p.Name,
		ScientificName: p.ScientificName,
		Description:    p.Description,
		Symptoms:       nonNil(p.Symptoms),
		Management:     p.Management,
		Images:         nonNil(p.Images),
		AffectedCrops:  crops,
		CreatedAt:      p.CreatedAt,
	}
}

type PestInput struct {
	Name           string   `json:"name" validate:"required"`
	ScientificName string   `json:"scientificName"`
	Description    string   `json:"description"`
	Symptoms       []string `json:"symptoms"`
	Management     string   `json:"management"`
	Images         []string `json:"images" validate:"dive,required"`
	AffectedCrops  []string `json:"affectedCrops" validate:"dive,mongodb"`
}

type PestUpdate struct {
	Name           *string   `json:"name" validate:"omitempty,min=1"`
	ScientificName *string   `json:"scientificName"`
	Description    *string   `json:"description"`
	Symptoms       *[]string `json:"symptoms"`
	Management     *string   `json:"management"`
	Images         *[]string `json:"images"`
	AffectedCrops  *[]string `json:"affectedCrops" validate:"omitempty,dive,mongodb"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
