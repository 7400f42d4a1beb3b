// Package seed loads the bundled starter catalog into the crop and pest
// collections.
package seed

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/yaml.v3"

	"agroguard/internal/models"
	"agroguard/internal/repositories"
)

//go:embed catalog.yaml
var catalogYAML []byte

type PestEntry struct {
	Name           string   `yaml:"name"`
	ScientificName string   `yaml:"scientific_name"`
	Description    string   `yaml:"description"`
	Symptoms       []string `yaml:"symptoms"`
	Management     string   `yaml:"management"`
	Images         []string `yaml:"images"`
}

type CropEntry struct {
	Name        string   `yaml:"name"`
	Category    string   `yaml:"category"`
	Description string   `yaml:"description"`
	Image       string   `yaml:"image"`
	Pests       []string `yaml:"pests"`
}

type Catalog struct {
	Pests []PestEntry `yaml:"pests"`
	Crops []CropEntry `yaml:"crops"`
}

// Summary reports what a seed run inserted.
type Summary struct {
	Crops int
	Pests int
	Links int
}

// Parse decodes a catalog and checks that every crop only names known pests.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse seed catalog: %w", err)
	}

	known := make(map[string]bool, len(c.Pests))
	for _, p := range c.Pests {
		if known[p.Name] {
			return nil, fmt.Errorf("duplicate pest %q in seed catalog", p.Name)
		}
		known[p.Name] = true
	}
	for _, crop := range c.Crops {
		for _, name := range crop.Pests {
			if !known[name] {
				return nil, fmt.Errorf("crop %q references unknown pest %q", crop.Name, name)
			}
		}
	}
	return &c, nil
}

func Default() (*Catalog, error) {
	return Parse(catalogYAML)
}

// Run replaces the crop and pest collections with c. Pests are inserted
// first, crops reference them in listed order and each pest then gets the
// crops that reference it.
func Run(ctx context.Context, crops repositories.CropRepository, pests repositories.PestRepository, c *Catalog) (Summary, error) {
	var sum Summary

	if err := crops.DeleteAll(ctx); err != nil {
		return sum, err
	}
	if err := pests.DeleteAll(ctx); err != nil {
		return sum, err
	}
	log.Info().Msg("Cleared existing catalog")

	pestIDs := make(map[string]primitive.ObjectID, len(c.Pests))
	for _, p := range c.Pests {
		created, err := pests.Create(ctx, &models.Pest{
			Name:           p.Name,
			ScientificName: p.ScientificName,
			Description:    p.Description,
			Symptoms:       p.Symptoms,
			Management:     p.Management,
			Images:         p.Images,
			AffectedCrops:  []primitive.ObjectID{},
		})
		if err != nil {
			return sum, fmt.Errorf("failed to insert pest %q: %w", p.Name, err)
		}
		pestIDs[p.Name] = created.ID
		sum.Pests++
	}

	for _, entry := range c.Crops {
		refs := make([]primitive.ObjectID, 0, len(entry.Pests))
		for _, name := range entry.Pests {
			refs = append(refs, pestIDs[name])
		}

		crop, err := crops.Create(ctx, &models.Crop{
			Name:        entry.Name,
			Category:    entry.Category,
			Description: entry.Description,
			Image:       entry.Image,
			CommonPests: refs,
		})
		if err != nil {
			return sum, fmt.Errorf("failed to insert crop %q: %w", entry.Name, err)
		}
		sum.Crops++

		if err := pests.AddCrop(ctx, refs, crop.ID); err != nil {
			return sum, fmt.Errorf("failed to link pests to crop %q: %w", entry.Name, err)
		}
		sum.Links += len(refs)
	}

	log.Info().Int("crops", sum.Crops).Int("pests", sum.Pests).Int("links", sum.Links).Msg("Catalog seeded")
	return sum, nil
}
