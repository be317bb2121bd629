package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/RoomRelay/internal/application/config"
)

type IceHandler struct {
	cfg config.ICEConfig
	now func() time.Time
}

func NewIceHandler(cfg *config.Config) *IceHandler {
	return &IceHandler{cfg: cfg.ICE, now: time.Now}
}

// IceServers выдает STUN и, если настроен coturn, TURN с временными кредами (TURN REST API)
func (h *IceHandler) IceServers(c echo.Context) error {
	servers := make([]webrtc.ICEServer, 0, 2)

	if len(h.cfg.STUNURLs) > 0 {
		servers = append(servers, h.cfg.STUNServer())
	}

	if urls := h.cfg.TurnURLs(); urls != nil {
		expiration := h.now().Add(h.cfg.TurnTTL).Unix()
		username := fmt.Sprintf("%d", expiration)

		// Создаём HMAC-SHA1 с использованием static-auth-secret
		mac := hmac.New(sha1.New, []byte(h.cfg.TurnSecret))
		mac.Write([]byte(username))
		password := base64.StdEncoding.EncodeToString(mac.Sum(nil))

		servers = append(servers, webrtc.ICEServer{
			URLs:       urls,
			Username:   username,
			Credential: password,
		})
	}

	return c.JSON(http.StatusOK, servers)
}
