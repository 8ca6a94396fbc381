package domain

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// UpdateCurationRequest is the only accepted shape of a curation PATCH body
type UpdateCurationRequest struct {
	Status   CurationStatus `json:"status" validate:"required,oneof=pending approved rejected"`
	Assignee *string        `json:"assignee" validate:"omitempty,eth_addr"`
}

// UpdateCurationBody wraps the update payload as {"curation": {...}}
type UpdateCurationBody struct {
	Curation *UpdateCurationRequest `json:"curation" validate:"required"`
}

// InsertCurationRequest is the optional payload of a curation POST
type InsertCurationRequest struct {
	Assignee *string `json:"assignee" validate:"omitempty,eth_addr"`
}

// InsertCurationBody wraps the insert payload as {"curation": {...}}
type InsertCurationBody struct {
	Curation *InsertCurationRequest `json:"curation"`
}

// OpenItemReviewsRequest lists the items of a third-party collection to put under review
type OpenItemReviewsRequest struct {
	ItemIDs []string `json:"itemIds" validate:"required,min=1,dive,required"`
}

// Validate checks the struct tags
func (r *UpdateCurationRequest) Validate() error {
	return validate.Struct(r)
}

// Validate checks the struct tags
func (r *InsertCurationRequest) Validate() error {
	return validate.Struct(r)
}

// Validate checks the struct tags
func (r *OpenItemReviewsRequest) Validate() error {
	return validate.Struct(r)
}

// Validate checks the wrapper and the nested curation
func (b *UpdateCurationBody) Validate() error {
	return validate.Struct(b)
}

// Validate accepts a missing curation object
func (b *InsertCurationBody) Validate() error {
	if b.Curation == nil {
		return nil
	}
	return b.Curation.Validate()
}
