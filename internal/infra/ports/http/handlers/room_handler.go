package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/RoomRelay/internal/usecase"
)

type RoomHandler struct {
	signalingUsecase usecase.SignalingUsecase
}

func NewRoomHandler(signalingUsecase usecase.SignalingUsecase) *RoomHandler {
	return &RoomHandler{signalingUsecase: signalingUsecase}
}

// ListRooms отдает тот же снимок комнат, что рассылается в update-rooms
func (h *RoomHandler) ListRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, h.signalingUsecase.Rooms(c.Request().Context()))
}
