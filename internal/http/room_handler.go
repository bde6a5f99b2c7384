package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/application"
)

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	DeleteRoom(ctx context.Context, principal application.Principal, roomID string) error
	GetRoom(ctx context.Context, roomID string) (application.Room, error)
	ListRooms(ctx context.Context, principal application.Principal) ([]application.Room, error)
}

type RoomHandler struct {
	service   roomService
	responder responder
	logger    *zap.Logger
}

func NewRoomHandler(service roomService, logger *zap.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, fields...)
}

func (h *RoomHandler) Create(c echo.Context) error {
	ctx, principal := caller(c)

	var req roomRequest
	if err := bind(c, &req); err != nil {
		h.log(ctx, "Create", zap.String("error_kind", "bad_request")).Warn("failed to decode room request", zap.Error(err))
		return h.responder.bindError(c, err)
	}

	logger := h.log(ctx, "Create")
	room, err := h.service.CreateRoom(ctx, application.CreateRoomParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.Error("room creation failed", zap.Error(err), zap.String("error_kind", application.ErrorKind(err)))
		return h.responder.handleServiceError(c, err)
	}

	logger.Info("room created", zap.String("room_id", room.ID))
	return h.responder.writeJSON(c, http.StatusCreated, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Update(c echo.Context) error {
	ctx, principal := caller(c)
	roomID := strings.TrimSpace(c.Param("id"))
	if roomID == "" {
		return h.responder.writeError(c, http.StatusBadRequest, errMissingID)
	}

	var req roomRequest
	if err := bind(c, &req); err != nil {
		h.log(ctx, "Update", zap.String("room_id", roomID), zap.String("error_kind", "bad_request")).Warn("failed to decode room update", zap.Error(err))
		return h.responder.bindError(c, err)
	}

	logger := h.log(ctx, "Update", zap.String("room_id", roomID))
	room, err := h.service.UpdateRoom(ctx, application.UpdateRoomParams{
		Principal: principal,
		RoomID:    roomID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.Error("room update failed", zap.Error(err), zap.String("error_kind", application.ErrorKind(err)))
		return h.responder.handleServiceError(c, err)
	}

	logger.Info("room updated")
	return h.responder.writeJSON(c, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Delete(c echo.Context) error {
	ctx, principal := caller(c)
	roomID := strings.TrimSpace(c.Param("id"))
	if roomID == "" {
		return h.responder.writeError(c, http.StatusBadRequest, errMissingID)
	}

	logger := h.log(ctx, "Delete", zap.String("room_id", roomID))
	if err := h.service.DeleteRoom(ctx, principal, roomID); err != nil {
		logger.Error("room delete failed", zap.Error(err), zap.String("error_kind", application.ErrorKind(err)))
		return h.responder.handleServiceError(c, err)
	}

	logger.Info("room deleted")
	return h.responder.writeJSON(c, http.StatusNoContent, nil)
}

func (h *RoomHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	roomID := strings.TrimSpace(c.Param("id"))

	room, err := h.service.GetRoom(ctx, roomID)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) List(c echo.Context) error {
	ctx, principal := caller(c)

	logger := h.log(ctx, "List")
	rooms, err := h.service.ListRooms(ctx, principal)
	if err != nil {
		logger.Error("room list failed", zap.Error(err), zap.String("error_kind", application.ErrorKind(err)))
		return h.responder.handleServiceError(c, err)
	}

	logger.Info("rooms listed", zap.Int("result_count", len(rooms)))
	return h.responder.writeJSON(c, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

type roomRequest struct {
	Name       string  `json:"name" validate:"required"`
	Location   string  `json:"location" validate:"required"`
	Capacity   int     `json:"capacity" validate:"gt=0"`
	Facilities *string `json:"facilities"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		Name:       strings.TrimSpace(r.Name),
		Location:   strings.TrimSpace(r.Location),
		Capacity:   r.Capacity,
		Facilities: r.Facilities,
	}
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type roomDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Location   string  `json:"location"`
	Capacity   int     `json:"capacity"`
	Facilities *string `json:"facilities,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

func toRoomDTO(room application.Room) roomDTO {
	return roomDTO{
		ID:         room.ID,
		Name:       room.Name,
		Location:   room.Location,
		Capacity:   room.Capacity,
		Facilities: room.Facilities,
		CreatedAt:  room.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  room.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toRoomDTOs(rooms []application.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}
