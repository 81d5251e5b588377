package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateItemRequestValidate(t *testing.T) {
	valid := CreateItemRequest{
		Title:        "Umbrella",
		Description:  "Black, near gate 2",
		ItemType:     ItemTypeFound,
		ContactPhone: "+1555000",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name      string
		mutate    func(*CreateItemRequest)
		wantField string
	}{
		{"missing title", func(r *CreateItemRequest) { r.Title = "" }, "title"},
		{"missing description", func(r *CreateItemRequest) { r.Description = "" }, "description"},
		{"invalid type", func(r *CreateItemRequest) { r.ItemType = "misplaced" }, "item_type"},
		{"missing contact", func(r *CreateItemRequest) { r.ContactPhone = "" }, "contact_phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			ve, ok := IsValidationError(req.Validate())
			require.True(t, ok)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestCreateItemRequestNormalize(t *testing.T) {
	req := CreateItemRequest{
		Title:    "  Umbrella ",
		ItemType: " LOST ",
	}
	req.Normalize()

	assert.Equal(t, "Umbrella", req.Title)
	assert.Equal(t, "lost", req.ItemType, "item type is lowercased")
}

func TestItemTypeAndStatusSets(t *testing.T) {
	assert.True(t, IsValidItemType(ItemTypeLost))
	assert.True(t, IsValidItemType(ItemTypeFound))
	assert.False(t, IsValidItemType("all"))
	assert.False(t, IsValidItemType(""))

	assert.True(t, IsValidStatus(StatusActive))
	assert.True(t, IsValidStatus(StatusResolved))
	assert.False(t, IsValidStatus("closed"))
}
