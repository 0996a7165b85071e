package dto

import (
	"time"

	"github.com/uide-dev/titulacion-api/internal/models"
)

// NotificationCreateRequest describes an internal notification publish.
type NotificationCreateRequest struct {
	UserID  uint   `json:"user_id" validate:"required,gt=0"`
	Message string `json:"message" validate:"required,min=1,max=2000"`
}

// NotificationResponse serializes one in-app notification.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse converts a Notification model into a DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Message:   model.Message,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts notification models into DTOs.
func NewNotificationResponseSlice(models []models.Notification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(models))
	for _, notification := range models {
		responses = append(responses, NewNotificationResponse(notification))
	}

	return responses
}
