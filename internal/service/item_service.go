package service

import (
	"context"
	"fmt"
	"time"

	"github.com/campuskeep/lostfound/internal/domain"
	"github.com/campuskeep/lostfound/internal/repo/postgres"
	"github.com/campuskeep/lostfound/pkg/events"
	"github.com/campuskeep/lostfound/pkg/logger"
)

type ItemService interface {
	Report(ctx context.Context, userID int64, req *domain.CreateItemRequest, photoFilename *string) (*domain.Item, error)
	Get(ctx context.Context, id int64) (*domain.Item, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Item, error)
	Search(ctx context.Context, q *domain.ItemSearchQuery) ([]domain.Item, error)
	UpdateStatus(ctx context.Context, itemID, userID int64, status string) error
}

type itemService struct {
	itemRepo postgres.ItemRepository
	eventBus events.Publisher
}

func NewItemService(itemRepo postgres.ItemRepository, eventBus events.Publisher) ItemService {
	return &itemService{
		itemRepo: itemRepo,
		eventBus: eventBus,
	}
}

func (s *itemService) Report(ctx context.Context, userID int64, req *domain.CreateItemRequest, photoFilename *string) (*domain.Item, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	item := &domain.Item{
		Title:         req.Title,
		Description:   req.Description,
		ItemType:      req.ItemType,
		ContactPhone:  req.ContactPhone,
		PhotoFilename: photoFilename,
		Status:        domain.StatusActive,
		UserID:        userID,
	}

	created, err := s.itemRepo.Create(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	if err := s.eventBus.Publish(ctx, events.ItemReported, events.ItemReportedEvent{
		ItemID:     created.ID,
		ItemType:   created.ItemType,
		Title:      created.Title,
		ReporterID: created.UserID,
		ReportedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish item event", "error", err, "item_id", created.ID)
	}

	return created, nil
}

func (s *itemService) Get(ctx context.Context, id int64) (*domain.Item, error) {
	item, err := s.itemRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *itemService) ListRecent(ctx context.Context, limit int) ([]domain.Item, error) {
	items, err := s.itemRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

func (s *itemService) Search(ctx context.Context, q *domain.ItemSearchQuery) ([]domain.Item, error) {
	items, err := s.itemRepo.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	return items, nil
}

func (s *itemService) UpdateStatus(ctx context.Context, itemID, userID int64, status string) error {
	if !domain.IsValidStatus(status) {
		return domain.NewValidationError("status", "status must be active or resolved")
	}

	updated, err := s.itemRepo.UpdateStatus(ctx, itemID, userID, status)
	if err != nil {
		return fmt.Errorf("failed to update item status: %w", err)
	}
	if updated {
		return nil
	}

	// Nothing touched: either the item is gone or the caller doesn't own it.
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return fmt.Errorf("failed to check item: %w", err)
	}
	if item == nil {
		return domain.ErrNotFound
	}
	return domain.ErrForbidden
}
