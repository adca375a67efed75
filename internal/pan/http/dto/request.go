// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/panvault/internal/validation"
)

// IngestRequest contains the parameters for recording a card sighting.
// SeenAt is optional; a zero value means "now".
type IngestRequest struct {
	Hpan   string    `json:"hpan" binding:"required"`
	Pan    string    `json:"pan" binding:"required"`
	SeenAt time.Time `json:"seen_at,omitempty"`
}

// Validate checks if the ingest request is valid.
func (r *IngestRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Hpan,
			validation.Required,
			customValidation.Hpan,
		),
		validation.Field(&r.Pan,
			validation.Required,
			customValidation.Pan,
		),
	)
}

// DecryptRequest contains the parameters for the restricted decrypt operation.
// RequestedBy and Reason are recorded in the tamper-evident audit trail.
type DecryptRequest struct {
	Hpan        string `json:"hpan" binding:"required"`
	RequestedBy string `json:"requested_by" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
}

// Validate checks if the decrypt request is valid.
func (r *DecryptRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Hpan,
			validation.Required,
			customValidation.Hpan,
		),
		validation.Field(&r.RequestedBy,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&r.Reason,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 1024),
		),
	)
}
