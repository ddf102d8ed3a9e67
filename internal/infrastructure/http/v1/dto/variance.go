package dto

import (
	"time"

	"fuelstation/internal/domain/variance"
)

// VarianceQuery filters variance notifications.
type VarianceQuery struct {
	RangeQuery
	Status   string `form:"status" binding:"omitempty,oneof=open investigating resolved"`
	Severity string `form:"severity" binding:"omitempty,oneof=low medium high critical"`
}

// VarianceStatusRequest moves a notification through the investigation workflow.
type VarianceStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=open investigating resolved"`
	Notes  string `json:"notes" binding:"max=2000"`
}

// VarianceResponse represents a variance notification in API responses.
type VarianceResponse struct {
	ID                 string     `json:"id"`
	TankID             string     `json:"tankId"`
	ReconciliationID   *string    `json:"reconciliationId,omitempty"`
	NotificationType   string     `json:"notificationType"`
	NotificationDate   string     `json:"notificationDate"`
	Severity           string     `json:"severity"`
	VariancePercentage string     `json:"variancePercentage"`
	VarianceMagnitude  string     `json:"varianceMagnitude"`
	Status             string     `json:"status"`
	ResolvedByUserID   *string    `json:"resolvedByUserId,omitempty"`
	ResolvedAt         *time.Time `json:"resolvedAt,omitempty"`
	ResolutionNotes    *string    `json:"resolutionNotes,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// FromNotification converts entity to response DTO.
func FromNotification(n variance.Notification) VarianceResponse {
	var recID *string
	if n.ReconciliationID != nil {
		s := n.ReconciliationID.String()
		recID = &s
	}
	return VarianceResponse{
		ID:                 n.ID.String(),
		TankID:             n.TankID.String(),
		ReconciliationID:   recID,
		NotificationType:   n.NotificationType,
		NotificationDate:   DateString(n.NotificationDate),
		Severity:           string(n.Severity),
		VariancePercentage: n.VariancePercentage.StringFixed(2),
		VarianceMagnitude:  n.VarianceMagnitude.StringFixed(2),
		Status:             string(n.Status),
		ResolvedByUserID:   n.ResolvedByUserID,
		ResolvedAt:         n.ResolvedAt,
		ResolutionNotes:    n.ResolutionNotes,
		CreatedAt:          n.CreatedAt,
		UpdatedAt:          n.UpdatedAt,
	}
}
