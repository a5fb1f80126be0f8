package handler

import (
	"github.com/bamarler/flaZK/internal/verification/models"
	"github.com/bamarler/flaZK/internal/verification/service"
)

type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
	EntryURL  string `json:"entryUrl"`
	Status    string `json:"status"`
}

func toCreateResponse(result *service.CreateResult) CreateSessionResponse {
	return CreateSessionResponse{
		SessionID: result.Session.ID.String(),
		EntryURL:  result.EntryURL,
		Status:    string(result.Session.Status),
	}
}

type StatusResponse struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
	Proof     string `json:"proof,omitempty"`
}

func toStatusResponse(view *service.StatusView) StatusResponse {
	return StatusResponse{
		SessionID: view.SessionID.String(),
		Status:    string(view.Status),
		Proof:     view.Proof,
	}
}

type CompleteSessionResponse struct {
	RedirectURL  string                   `json:"redirectUrl"`
	Message      models.CompletionMessage `json:"message"`
	TargetOrigin string                   `json:"targetOrigin"`
	DeliveryMode string                   `json:"deliveryMode"`
}

func toCompleteResponse(result *models.CompletionResult) CompleteSessionResponse {
	return CompleteSessionResponse{
		RedirectURL:  result.RedirectURL,
		Message:      result.Message,
		TargetOrigin: result.TargetOrigin,
		DeliveryMode: string(result.DeliveryMode),
	}
}

// SessionView is the widget-facing read model: enough to resume the flow,
// nothing the widget did not already receive via the entry URL.
type SessionView struct {
	SessionID     string `json:"sessionId"`
	ClientID      string `json:"clientId"`
	ClientName    string `json:"clientName"`
	CallbackURL   string `json:"callbackUrl"`
	Status        string `json:"status"`
	DeliveryMode  string `json:"deliveryMode"`
	AgeMin        *int   `json:"age_min,omitempty"`
	LicenseStatus *int   `json:"license_status,omitempty"`
	PointsMax     *int   `json:"points_max,omitempty"`
}

func toSessionView(s *models.Session) SessionView {
	return SessionView{
		SessionID:     s.ID.String(),
		ClientID:      s.ClientID.String(),
		ClientName:    s.ClientName,
		CallbackURL:   s.CallbackURL,
		Status:        string(s.Status),
		DeliveryMode:  string(s.DeliveryMode),
		AgeMin:        s.Requirements.AgeMin,
		LicenseStatus: s.Requirements.LicenseStatus,
		PointsMax:     s.Requirements.PointsMax,
	}
}
