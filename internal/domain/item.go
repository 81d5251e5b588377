package domain

import (
	"strings"
	"time"
)

// Item types
const (
	ItemTypeLost  = "lost"
	ItemTypeFound = "found"
)

// Item statuses
const (
	StatusActive   = "active"
	StatusResolved = "resolved"
)

type Item struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ItemType      string    `json:"item_type"`
	ContactPhone  string    `json:"contact_phone"`
	PhotoFilename *string   `json:"photo_filename,omitempty"`
	DateReported  time.Time `json:"date_reported"`
	Status        string    `json:"status"`
	UserID        int64     `json:"user_id"`
}

type CreateItemRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ItemType     string `json:"item_type"`
	ContactPhone string `json:"contact_phone"`
}

type UpdateItemStatusRequest struct {
	Status string `json:"status"`
}

// ItemSearchQuery filters the shared board. Empty fields match everything.
type ItemSearchQuery struct {
	Text     string
	ItemType string
	Status   string
}

var validItemTypes = map[string]bool{
	ItemTypeLost:  true,
	ItemTypeFound: true,
}

var validStatuses = map[string]bool{
	StatusActive:   true,
	StatusResolved: true,
}

func IsValidItemType(t string) bool {
	return validItemTypes[t]
}

func IsValidStatus(s string) bool {
	return validStatuses[s]
}

func (r *CreateItemRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.ItemType = strings.ToLower(strings.TrimSpace(r.ItemType))
	r.ContactPhone = strings.TrimSpace(r.ContactPhone)
}

func (r *CreateItemRequest) Validate() error {
	if r.Title == "" {
		return NewValidationError("title", "title is required")
	}
	if r.Description == "" {
		return NewValidationError("description", "description is required")
	}
	if !IsValidItemType(r.ItemType) {
		return NewValidationError("item_type", "item type must be lost or found")
	}
	if r.ContactPhone == "" {
		return NewValidationError("contact_phone", "contact phone is required")
	}
	return nil
}

func (r *UpdateItemStatusRequest) Validate() error {
	if !IsValidStatus(r.Status) {
		return NewValidationError("status", "status must be active or resolved")
	}
	return nil
}
