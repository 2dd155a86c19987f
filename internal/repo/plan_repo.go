// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Plan model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They hold no business logic: plans are
// computed by services.PacingService and only stored and queried here.
//
// When a plan is not found (or belongs to another client) functions return
// gorm.ErrRecordNotFound, also exported as ErrNotFound.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-send-pacer/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// CreatePlan inserts p. The caller assigns ID and ClientID; CreatedAt
// defaults to the current UTC time when unset.
func CreatePlan(ctx context.Context, db *gorm.DB, p *domain.Plan) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(p).Error
}

// GetPlan fetches a single plan by ID and owner.
func GetPlan(ctx context.Context, db *gorm.DB, id, clientID string) (*domain.Plan, error) {
	var p domain.Plan
	err := db.WithContext(ctx).
		Where("id = ? AND client_id = ?", id, clientID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CountPlans returns the total number of plans owned by clientID.
func CountPlans(ctx context.Context, db *gorm.DB, clientID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Plan{}).
		Where("client_id = ?", clientID).
		Count(&total).Error
	return total, err
}

// ListPlansPage returns a page of plans for clientID, newest first.
// Use CountPlans to obtain the total for pagination metadata.
func ListPlansPage(ctx context.Context, db *gorm.DB, clientID string, offset, limit int) ([]domain.Plan, error) {
	var out []domain.Plan
	err := db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
