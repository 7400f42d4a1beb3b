package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agroguard/internal/metrics"
	"agroguard/internal/models"
	"agroguard/internal/repositories"
	"agroguard/internal/utils"
)

// CatalogService manages crops and pests. Reads return documents with their
// references resolved in stored order. Writes keep the inverse reference
// list on the other side in step, best effort, after the primary write.
type CatalogService interface {
	ListCrops(ctx context.Context) ([]models.PopulatedCrop, error)
	ListCropsByCategory(ctx context.Context, category string) ([]models.PopulatedCrop, error)
	GetCrop(ctx context.Context, id primitive.ObjectID) (*models.PopulatedCrop, error)
	CreateCrop(ctx context.Context, in models.CropInput) (*models.PopulatedCrop, error)
	UpdateCrop(ctx context.Context, id primitive.ObjectID, upd models.CropUpdate) (*models.PopulatedCrop, error)
	DeleteCrop(ctx context.Context, id primitive.ObjectID) error

	ListPests(ctx context.Context) ([]models.PopulatedPest, error)
	GetPest(ctx context.Context, id primitive.ObjectID) (*models.PopulatedPest, error)
	CreatePest(ctx context.Context, in models.PestInput) (*models.PopulatedPest, error)
	UpdatePest(ctx context.Context, id primitive.ObjectID, upd models.PestUpdate) (*models.PopulatedPest, error)
	DeletePest(ctx context.Context, id primitive.ObjectID) error
}

type catalogService struct {
	crops repositories.CropRepository
	pests repositories.PestRepository
}

func NewCatalogService(crops repositories.CropRepository, pests repositories.PestRepository) CatalogService {
	return &catalogService{crops: crops, pests: pests}
}

func (s *catalogService) ListCrops(ctx context.Context) ([]models.PopulatedCrop, error) {
	crops, err := s.crops.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.populateCrops(ctx, crops)
}

func (s *catalogService) ListCropsByCategory(ctx context.Context, category string) ([]models.PopulatedCrop, error) {
	crops, err := s.crops.FindByCategory(ctx, strings.TrimSpace(category))
	if err != nil {
		return nil, err
	}
	return s.populateCrops(ctx, crops)
}

func (s *catalogService) GetCrop(ctx context.Context, id primitive.ObjectID) (*models.PopulatedCrop, error) {
	crop, err := s.crops.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if crop == nil {
		return nil, ErrNotFound
	}
	return s.populateCrop(ctx, crop)
}

func (s *catalogService) CreateCrop(ctx context.Context, in models.CropInput) (*models.PopulatedCrop, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, err
	}
	pestIDs, err := utils.ParseObjectIDs(in.CommonPests)
	if err != nil {
		return nil, invalidRefs("commonPests")
	}

	crop, err := s.crops.Create(ctx, &models.Crop{
		Name:        strings.TrimSpace(in.Name),
		Category:    strings.TrimSpace(in.Category),
		Description: in.Description,
		Image:       in.Image,
		CommonPests: pestIDs,
	})
	if err != nil {
		return nil, err
	}
	metrics.CatalogWritesTotal.WithLabelValues("crop", "create").Inc()

	if err := s.pests.AddCrop(ctx, pestIDs, crop.ID); err != nil {
		log.Warn().Err(err).Str("crop_id", crop.ID.Hex()).Msg("Failed to link pests to new crop")
	}
	log.Info().Str("crop_id", crop.ID.Hex()).Str("name", crop.Name).Msg("Crop created")
	return s.populateCrop(ctx, crop)
}

func (s *catalogService) UpdateCrop(ctx context.Context, id primitive.ObjectID, upd models.CropUpdate) (*models.PopulatedCrop, error) {
	if err := utils.ValidateStruct(upd); err != nil {
		return nil, err
	}
	existing, err := s.crops.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	fields := bson.M{}
	if upd.Name != nil {
		fields["name"] = strings.TrimSpace(*upd.Name)
	}
	if upd.Category != nil {
		fields["category"] = strings.TrimSpace(*upd.Category)
	}
	if upd.Description != nil {
		fields["description"] = *upd.Description
	}
	if upd.Image != nil {
		fields["image"] = *upd.Image
	}
	var newPests []primitive.ObjectID
	if upd.CommonPests != nil {
		newPests, err = utils.ParseObjectIDs(*upd.CommonPests)
		if err != nil {
			return nil, invalidRefs("commonPests")
		}
		fields["common_pests"] = newPests
	}

	crop, err := s.crops.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	if crop == nil {
		return nil, ErrNotFound
	}
	metrics.CatalogWritesTotal.WithLabelValues("crop", "update").Inc()

	if upd.CommonPests != nil {
		added, removed := diffIDs(existing.CommonPests, newPests)
		if err := s.pests.AddCrop(ctx, added, id); err != nil {
			log.Warn().Err(err).Str("crop_id", id.Hex()).Msg("Failed to link added pests")
		}
		if err := s.pests.RemoveCrop(ctx, removed, id); err != nil {
			log.Warn().Err(err).Str("crop_id", id.Hex()).Msg("Failed to unlink removed pests")
		}
	}
	return s.populateCrop(ctx, crop)
}

func (s *catalogService) DeleteCrop(ctx context.Context, id primitive.ObjectID) error {
	crop, err := s.crops.Delete(ctx, id)
	if err != nil {
		return err
	}
	if crop == nil {
		return ErrNotFound
	}
	metrics.CatalogWritesTotal.WithLabelValues("crop", "delete").Inc()

	if err := s.pests.RemoveCrop(ctx, nil, id); err != nil {
		log.Warn().Err(err).Str("crop_id", id.Hex()).Msg("Failed to unlink deleted crop from pests")
	}
	log.Info().Str("crop_id", id.Hex()).Msg("Crop deleted")
	return nil
}

func (s *catalogService) ListPests(ctx context.Context) ([]models.PopulatedPest, error) {
	pests, err := s.pests.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.populatePests(ctx, pests)
}

func (s *catalogService) GetPest(ctx context.Context, id primitive.ObjectID) (*models.PopulatedPest, error) {
	pest, err := s.pests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pest == nil {
		return nil, ErrNotFound
	}
	return s.populatePest(ctx, pest)
}

func (s *catalogService) CreatePest(ctx context.Context, in models.PestInput) (*models.PopulatedPest, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, err
	}
	cropIDs, err := utils.ParseObjectIDs(in.AffectedCrops)
	if err != nil {
		return nil, invalidRefs("affectedCrops")
	}

	pest, err := s.pests.Create(ctx, &models.Pest{
		Name:           strings.TrimSpace(in.Name),
		ScientificName: in.ScientificName,
		Description:    in.Description,
		Symptoms:       in.Symptoms,
		Management:     in.Management,
		Images:         in.Images,
		AffectedCrops:  cropIDs,
	})
	if err != nil {
		return nil, err
	}
	metrics.CatalogWritesTotal.WithLabelValues("pest", "create").Inc()

	if err := s.crops.AddPest(ctx, cropIDs, pest.ID); err != nil {
		log.Warn().Err(err).Str("pest_id", pest.ID.Hex()).Msg("Failed to link crops to new pest")
	}
	log.Info().Str("pest_id", pest.ID.Hex()).Str("name", pest.Name).Msg("Pest created")
	return s.populatePest(ctx, pest)
}

func (s *catalogService) UpdatePest(ctx context.Context, id primitive.ObjectID, upd models.PestUpdate) (*models.PopulatedPest, error) {
	if err := utils.ValidateStruct(upd); err != nil {
		return nil, err
	}
	existing, err := s.pests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	fields := bson.M{}
	if upd.Name != nil {
		fields["name"] = strings.TrimSpace(*upd.Name)
	}
	if upd.ScientificName != nil {
		fields["scientific_name"] = *upd.ScientificName
	}
	if upd.Description != nil {
		fields["description"] = *upd.Description
	}
	if upd.Symptoms != nil {
		fields["symptoms"] = nonNilStrings(*upd.Symptoms)
	}
	if upd.Management != nil {
		fields["management"] = *upd.Management
	}
	if upd.Images != nil {
		fields["images"] = nonNilStrings(*upd.Images)
	}
	var newCrops []primitive.ObjectID
	if upd.AffectedCrops != nil {
		newCrops, err = utils.ParseObjectIDs(*upd.AffectedCrops)
		if err != nil {
			return nil, invalidRefs("affectedCrops")
		}
		fields["affected_crops"] = newCrops
	}

	pest, err := s.pests.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	if pest == nil {
		return nil, ErrNotFound
	}
	metrics.CatalogWritesTotal.WithLabelValues("pest", "update").Inc()

	if upd.AffectedCrops != nil {
		added, removed := diffIDs(existing.AffectedCrops, newCrops)
		if err := s.crops.AddPest(ctx, added, id); err != nil {
			log.Warn().Err(err).Str("pest_id", id.Hex()).Msg("Failed to link added crops")
		}
		if err := s.crops.RemovePest(ctx, removed, id); err != nil {
			log.Warn().Err(err).Str("pest_id", id.Hex()).Msg("Failed to unlink removed crops")
		}
	}
	return s.populatePest(ctx, pest)
}

func (s *catalogService) DeletePest(ctx context.Context, id primitive.ObjectID) error {
	pest, err := s.pests.Delete(ctx, id)
	if err != nil {
		return err
	}
	if pest == nil {
		return ErrNotFound
	}
	metrics.CatalogWritesTotal.WithLabelValues("pest", "delete").Inc()

	if err := s.crops.RemovePest(ctx, nil, id); err != nil {
		log.Warn().Err(err).Str("pest_id", id.Hex()).Msg("Failed to unlink deleted pest from crops")
	}
	log.Info().Str("pest_id", id.Hex()).Msg("Pest deleted")
	return nil
}

func (s *catalogService) populateCrop(ctx context.Context, crop *models.Crop) (*models.PopulatedCrop, error) {
	pests, err := s.pests.FindByIDs(ctx, crop.CommonPests)
	if err != nil {
		return nil, fmt.Errorf("failed to populate crop pests: %w", err)
	}
	out := crop.Populate(pests)
	return &out, nil
}

func (s *catalogService) populateCrops(ctx context.Context, crops []models.Crop) ([]models.PopulatedCrop, error) {
	var ids []primitive.ObjectID
	for _, c := range crops {
		ids = append(ids, c.CommonPests...)
	}
	pests, err := s.pests.FindByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to populate crop pests: %w", err)
	}
	byID := make(map[primitive.ObjectID]models.Pest, len(pests))
	for _, p := range pests {
		byID[p.ID] = p
	}

	out := make([]models.PopulatedCrop, 0, len(crops))
	for i := range crops {
		refs := make([]models.Pest, 0, len(crops[i].CommonPests))
		for _, id := range crops[i].CommonPests {
			if p, ok := byID[id]; ok {
				refs = append(refs, p)
			}
		}
		out = append(out, crops[i].Populate(refs))
	}
	return out, nil
}

func (s *catalogService) populatePest(ctx context.Context, pest *models.Pest) (*models.PopulatedPest, error) {
	crops, err := s.crops.FindByIDs(ctx, pest.AffectedCrops)
	if err != nil {
		return nil, fmt.Errorf("failed to populate pest crops: %w", err)
	}
	out := pest.Populate(crops)
	return &out, nil
}

func (s *catalogService) populatePests(ctx context.Context, pests []models.Pest) ([]models.PopulatedPest, error) {
	var ids []primitive.ObjectID
	for _, p := range pests {
		ids = append(ids, p.AffectedCrops...)
	}
	crops, err := s.crops.FindByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to populate pest crops: %w", err)
	}
	byID := make(map[primitive.ObjectID]models.Crop, len(crops))
	for _, c := range crops {
		byID[c.ID] = c
	}

	out := make([]models.PopulatedPest, 0, len(pests))
	for i := range pests {
		refs := make([]models.Crop, 0, len(pests[i].AffectedCrops))
		for _, id := range pests[i].AffectedCrops {
			if c, ok := byID[id]; ok {
				refs = append(refs, c)
			}
		}
		out = append(out, pests[i].Populate(refs))
	}
	return out, nil
}

func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// diffIDs returns the ids only in next and the ids only in prev. Both
// results are non-nil since a nil id list means "every document" to the
// repository unlink calls.
func diffIDs(prev, next []primitive.ObjectID) (added, removed []primitive.ObjectID) {
	added, removed = []primitive.ObjectID{}, []primitive.ObjectID{}
	inPrev := make(map[primitive.ObjectID]bool, len(prev))
	for _, id := range prev {
		inPrev[id] = true
	}
	inNext := make(map[primitive.ObjectID]bool, len(next))
	for _, id := range next {
		inNext[id] = true
		if !inPrev[id] {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if !inNext[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func invalidRefs(field string) error {
	return &utils.ValidationError{
		Message: "Validation failed",
		Fields:  []utils.FieldError{{Field: field, Tag: "mongodb", Message: field + " must contain valid ids"}},
	}
}
