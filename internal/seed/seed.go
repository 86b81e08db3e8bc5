// internal/seed/seed.go
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"reflect"

	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/novelmovie/novelmovie/internal/utils"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed taxonomies.yaml
var defaultTaxonomies []byte

// Entry is one taxonomy row in a seed file.
type Entry struct {
	Name              string `yaml:"name"`
	Slug              string `yaml:"slug"`
	Description       string `yaml:"description"`
	Category          string `yaml:"category"`
	SortOrder         int    `yaml:"sortOrder"`
	Inactive          bool   `yaml:"inactive"`
	SuggestedDuration int    `yaml:"suggestedDuration"`
}

// File maps a collection name to its entries.
type File map[models.TaxonomyKind][]Entry

// Result counts what a run changed per collection.
type Result struct {
	Created map[models.TaxonomyKind]int `json:"created"`
	Skipped map[models.TaxonomyKind]int `json:"skipped"`
}

// Default returns the embedded seed file.
func Default() []byte { return defaultTaxonomies }

// Parse decodes a seed file and rejects unknown collections and blank slugs.
func Parse(data []byte) (File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for kind, entries := range file {
		if models.NewTaxonomyModel(kind) == nil {
			return nil, fmt.Errorf("unknown collection %q", kind)
		}
		for i, e := range entries {
			if e.Name == "" || e.Slug == "" {
				return nil, fmt.Errorf("%s[%d]: name and slug are required", kind, i)
			}
		}
	}
	return file, nil
}

// Run inserts missing entries. Existing slugs are left untouched.
func Run(ctx context.Context, db *gorm.DB, file File) (*Result, error) {
	logger := utils.GetLogger().Named("seed")
	result := &Result{
		Created: make(map[models.TaxonomyKind]int),
		Skipped: make(map[models.TaxonomyKind]int),
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, kind := range models.AllTaxonomies {
			for _, entry := range file[kind] {
				var count int64
				if err := tx.Model(models.NewTaxonomyModel(kind)).Where("slug = ?", entry.Slug).Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					result.Skipped[kind]++
					continue
				}

				row := newRow(kind, entry)
				if err := tx.Create(row).Error; err != nil {
					return fmt.Errorf("failed to create %s %q: %w", kind, entry.Slug, err)
				}
				if entry.Inactive {
					if err := tx.Model(row).Update("is_active", false).Error; err != nil {
						return err
					}
				}
				result.Created[kind]++
			}
			logger.Info("collection seeded", map[string]interface{}{
				"collection": string(kind),
				"created":    result.Created[kind],
				"skipped":    result.Skipped[kind],
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// newRow fills the embedded Taxonomy of kind's model from entry.
func newRow(kind models.TaxonomyKind, entry Entry) interface{} {
	row := models.NewTaxonomyModel(kind)
	value := reflect.ValueOf(row).Elem()
	value.FieldByName("Taxonomy").Set(reflect.ValueOf(models.Taxonomy{
		Name:        entry.Name,
		Slug:        entry.Slug,
		Description: entry.Description,
		Category:    entry.Category,
		IsActive:    true,
		SortOrder:   entry.SortOrder,
	}))
	if format, ok := row.(*models.MovieFormat); ok {
		format.SuggestedDuration = entry.SuggestedDuration
	}
	return row
}
