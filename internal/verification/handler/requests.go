package handler

import (
	"strings"

	"github.com/bamarler/flaZK/internal/eligibility"
	"github.com/bamarler/flaZK/internal/verification/models"
	"github.com/bamarler/flaZK/internal/verification/service"
	id "github.com/bamarler/flaZK/pkg/domain"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
)

// HTTP Request DTOs - contain JSON tags for API serialization.
// These are converted to service commands before processing.

type CreateSessionRequest struct {
	CallbackURL   string `json:"callback_url"`
	ClientName    string `json:"client_name,omitempty"`
	AgeMin        *int   `json:"age_min,omitempty"`
	LicenseStatus *int   `json:"license_status,omitempty"`
	PointsMax     *int   `json:"points_max,omitempty"`
	DeliveryMode  string `json:"delivery_mode,omitempty"`
}

func (r *CreateSessionRequest) Normalize() {
	if r == nil {
		return
	}
	r.CallbackURL = strings.TrimSpace(r.CallbackURL)
	r.ClientName = strings.TrimSpace(r.ClientName)
	r.DeliveryMode = strings.TrimSpace(strings.ToLower(r.DeliveryMode))
}

func (r *CreateSessionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.CallbackURL == "" {
		return dErrors.New(dErrors.CodeValidation, "callback_url is required")
	}
	if _, err := models.ParseCallbackURL(r.CallbackURL); err != nil {
		return err
	}
	if _, err := models.ParseDeliveryMode(r.DeliveryMode); err != nil {
		return err
	}
	return r.requirements().Validate()
}

func (r *CreateSessionRequest) requirements() eligibility.Requirements {
	return eligibility.Requirements{
		AgeMin:        r.AgeMin,
		LicenseStatus: r.LicenseStatus,
		PointsMax:     r.PointsMax,
	}
}

// ToCommand converts the HTTP request to a service command for the
// authenticated client.
func (r *CreateSessionRequest) ToCommand(clientID id.ClientID, clientName string) (service.CreateCommand, error) {
	mode, err := models.ParseDeliveryMode(r.DeliveryMode)
	if err != nil {
		return service.CreateCommand{}, err
	}
	if r.ClientName != "" {
		clientName = r.ClientName
	}
	return service.CreateCommand{
		ClientID:     clientID,
		ClientName:   clientName,
		CallbackURL:  r.CallbackURL,
		Requirements: r.requirements(),
		DeliveryMode: mode,
	}, nil
}

type CompleteSessionRequest struct {
	Success bool   `json:"success"`
	Proof   string `json:"proof,omitempty"`
}

func (r *CompleteSessionRequest) Normalize() {
	if r == nil {
		return
	}
	r.Proof = strings.TrimSpace(r.Proof)
}

func (r *CompleteSessionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	// Proof consistency is enforced by the service, which owns the
	// sentinel convention.
	return nil
}
