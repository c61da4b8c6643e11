package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"NotifyRelay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Handler struct {
	service domain.NotificationService
}

func NewHandlersSet(service domain.NotificationService) *Handler {
	return &Handler{
		service: service,
	}
}

type CreateRequest struct {
	OwnerID     string                 `json:"owner_id" validate:"required"`
	Subject     string                 `json:"subject"`
	Body        string                 `json:"body" validate:"required"`
	Channels    []string               `json:"channels"`
	Metadata    map[string]interface{} `json:"metadata"`
	ScheduledAt string                 `json:"scheduled_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

var validate = validator.New()

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "обязательное поле"
	case "datetime":
		return "некорректный формат даты (ожидается RFC3339)"
	default:
		return "некорректное значение"
	}
}

func (h *Handler) CreateNotificationHandler(c *gin.Context) {
	var req CreateRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный JSON: " + err.Error()})
		return
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			errorsMap := make(map[string]string)
			for _, e := range verrs {
				errorsMap[e.Field()] = validationMessage(e)
			}

			c.JSON(http.StatusBadRequest, gin.H{
				"message": "Ошибка валидации",
				"errors":  errorsMap,
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный запрос: " + err.Error()})
		return
	}

	var scheduledAt time.Time
	if req.ScheduledAt != "" {
		var err error
		scheduledAt, err = time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Время указано некорректно"})
			return
		}
	}

	channels := make([]domain.Channel, 0, len(req.Channels))
	for _, name := range req.Channels {
		ch := domain.Channel(name)
		if !ch.IsValid() {
			c.JSON(http.StatusBadRequest,
				gin.H{"error": fmt.Sprintf("Канал отправки %s не поддерживается", name)})
			return
		}
		channels = append(channels, ch)
	}

	params := domain.CreateNotificationParams{
		OwnerID:     req.OwnerID,
		Subject:     req.Subject,
		Body:        req.Body,
		Channels:    channels,
		Metadata:    req.Metadata,
		ScheduledAt: scheduledAt,
	}

	n, err := h.service.CreateNotification(c.Request.Context(), params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": toNotificationResponse(n, nil),
	})
}

func (h *Handler) GetNotificationHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	n, err := h.service.GetNotificationByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	attempts, err := h.service.ListAttempts(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": toNotificationResponse(n, attempts)})
}

func (h *Handler) ListNotificationsHandler(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.service.ListByOwner(c.Request.Context(), ownerID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result := make([]NotificationResponse, 0, len(list))
	for i := range list {
		result = append(result, toNotificationResponse(&list[i], nil))
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h *Handler) ResendNotificationHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Resend(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	idStr := c.Param("id")
	if idStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is invalid"})
		return uuid.Nil, false
	}
	return id, true
}
