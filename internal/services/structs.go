// internal/services/structs.go
package services

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/novelmovie/novelmovie/internal/errors"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	defaultSort      = "-updatedAt"
)

// ListOptions are the common paging and sorting query parameters.
type ListOptions struct {
	Page  int
	Limit int
	Sort  string
}

// PageResult mirrors the paginated list shape the frontend expects.
type PageResult[T any] struct {
	Docs        []T   `json:"docs"`
	TotalDocs   int64 `json:"totalDocs"`
	Limit       int   `json:"limit"`
	Page        int   `json:"page"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// sortColumns maps API sort keys to columns.
var sortColumns = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"name":        "name",
	"status":      "status",
	"currentStep": "current_step",
	"projectName": "project_name",
}

// orderClause turns "-updatedAt" into "updated_at DESC".
func orderClause(sort string) (string, error) {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		sort = defaultSort
	}
	direction := "ASC"
	if strings.HasPrefix(sort, "-") {
		direction = "DESC"
		sort = sort[1:]
	}
	column, ok := sortColumns[sort]
	if !ok {
		return "", apperrors.NewValidationError(fmt.Sprintf("unsupported sort field %q", sort), nil)
	}
	return column + " " + direction, nil
}

func (o ListOptions) normalized() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = defaultPageLimit
	}
	if o.Limit > maxPageLimit {
		o.Limit = maxPageLimit
	}
	return o
}

// paginate counts and fetches one page of query.
func paginate[T any](query *gorm.DB, opts ListOptions) (*PageResult[T], error) {
	opts = opts.normalized()
	order, err := orderClause(opts.Sort)
	if err != nil {
		return nil, err
	}

	var total int64
	var model T
	if err := query.Session(&gorm.Session{}).Model(&model).Count(&total).Error; err != nil {
		return nil, err
	}

	docs := make([]T, 0, opts.Limit)
	if err := query.Session(&gorm.Session{}).
		Order(order).
		Limit(opts.Limit).
		Offset((opts.Page - 1) * opts.Limit).
		Find(&docs).Error; err != nil {
		return nil, err
	}

	totalPages := int((total + int64(opts.Limit) - 1) / int64(opts.Limit))
	return &PageResult[T]{
		Docs:        docs,
		TotalDocs:   total,
		Limit:       opts.Limit,
		Page:        opts.Page,
		TotalPages:  totalPages,
		HasNextPage: opts.Page < totalPages,
		HasPrevPage: opts.Page > 1,
	}, nil
}
