package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pion/webrtc/v4"
)

type Config struct {
	Debug      bool   `env:"DEBUG" envDefault:"false"`
	Port       string `env:"PORT" envDefault:"3000"`
	MetricPort string `env:"METRIC_PORT" envDefault:"9090"`
	Domain     string `env:"DOMAIN" envDefault:"http://localhost:3000"`
	StaticDir  string `env:"STATIC_DIR" envDefault:"web"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	MaxRoomNameLength int `env:"MAX_ROOM_NAME_LENGTH" envDefault:"64"`

	WS  WSConfig
	ICE ICEConfig
}

type WSConfig struct {
	MaxMessageBytes      int64         `env:"WS_MAX_MESSAGE_BYTES" envDefault:"65536"`
	MaxMessagesPerSecond float64       `env:"WS_MAX_MESSAGES_PER_SECOND" envDefault:"50"`
	SendQueueSize        int           `env:"WS_SEND_QUEUE_SIZE" envDefault:"256"`
	WriteWait            time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s"`
	PongWait             time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`
}

// PingPeriod must be less than PongWait.
func (w WSConfig) PingPeriod() time.Duration {
	return w.PongWait * 9 / 10
}

type ICEConfig struct {
	STUNURLs []string `env:"STUN_URLS" envSeparator:"," envDefault:"stun:stun.l.google.com:19302"`

	// TURN выдается только если задан хост
	TurnHost string        `env:"COTURN_HOST"`
	TurnTTL  time.Duration `env:"COTURN_TTL" envDefault:"1h"`

	// Secret - нужен для генерации временных кредов для фронта
	TurnSecret string `env:"COTURN_SECRET"`
}

func (i ICEConfig) STUNServer() webrtc.ICEServer {
	return webrtc.ICEServer{URLs: i.STUNURLs}
}

func (i ICEConfig) TurnURLs() []string {
	if i.TurnHost == "" {
		return nil
	}

	return []string{
		fmt.Sprintf("turn:%s?transport=udp", i.TurnHost),
		fmt.Sprintf("turn:%s?transport=tcp", i.TurnHost),
	}
}

func New() (*Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err = c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.MaxRoomNameLength <= 0 {
		errs = append(errs, errors.New("MAX_ROOM_NAME_LENGTH must be positive"))
	}
	if c.WS.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("WS_MAX_MESSAGE_BYTES must be positive"))
	}
	if c.WS.MaxMessagesPerSecond <= 0 {
		errs = append(errs, errors.New("WS_MAX_MESSAGES_PER_SECOND must be positive"))
	}
	if c.WS.SendQueueSize <= 0 {
		errs = append(errs, errors.New("WS_SEND_QUEUE_SIZE must be positive"))
	}
	if c.WS.WriteWait <= 0 || c.WS.PongWait <= 0 {
		errs = append(errs, errors.New("WS_WRITE_WAIT and WS_PONG_WAIT must be positive"))
	}
	if c.ICE.TurnHost != "" && c.ICE.TurnSecret == "" {
		errs = append(errs, errors.New("COTURN_SECRET is required when COTURN_HOST is set"))
	}

	return errors.Join(errs...)
}
