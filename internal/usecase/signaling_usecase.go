package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/qrave1/RoomRelay/internal/application/constant"
	"github.com/qrave1/RoomRelay/internal/application/metric"
	"github.com/qrave1/RoomRelay/internal/domain"
	"github.com/qrave1/RoomRelay/internal/domain/events"
	"github.com/qrave1/RoomRelay/internal/infra/adapters/memory"
)

type SignalingUsecase interface {
	HandleConnect(context.Context, uuid.UUID) error
	HandleDisconnect(context.Context, uuid.UUID) error

	HandleJoin(context.Context, uuid.UUID, events.JoinEvent) error
	HandleLeave(context.Context, uuid.UUID) error

	HandleOffer(context.Context, uuid.UUID, events.SdpEvent) error
	HandleAnswer(context.Context, uuid.UUID, events.SdpEvent) error
	HandleCandidate(context.Context, uuid.UUID, events.IceCandidateEvent) error

	HandlePing(context.Context, uuid.UUID)
	SendError(ctx context.Context, clientID uuid.UUID, message string)

	Rooms(context.Context) domain.RoomListing
}

type signalingUsecase struct {
	registry memory.SessionRegistry
	wsRepo   memory.WebsocketConnectionRepository
}

func NewSignalingUsecase(
	registry memory.SessionRegistry,
	wsRepo memory.WebsocketConnectionRepository,
) SignalingUsecase {
	return &signalingUsecase{
		registry: registry,
		wsRepo:   wsRepo,
	}
}

func (s *signalingUsecase) HandleConnect(ctx context.Context, clientID uuid.UUID) error {
	if err := s.send(clientID, events.TypeConnected, events.PeerEvent{ID: clientID.String()}); err != nil {
		return err
	}

	return s.send(clientID, events.TypeUpdateRooms, s.registry.Snapshot())
}

func (s *signalingUsecase) HandleDisconnect(ctx context.Context, clientID uuid.UUID) error {
	s.wsRepo.Remove(clientID)

	return s.leave(ctx, clientID)
}

func (s *signalingUsecase) HandleJoin(ctx context.Context, clientID uuid.UUID, joinEvent events.JoinEvent) error {
	res, err := s.registry.Join(clientID, joinEvent.RoomName)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRoomName) {
			s.SendError(ctx, clientID, "invalid room name")
			return nil
		}

		return fmt.Errorf("join room: %w", err)
	}

	if res.AlreadyMember {
		slog.Debug("client already in room", slog.Any(constant.ClientID, clientID), slog.String(constant.RoomName, res.Room))
		return nil
	}

	if res.Left != nil {
		slog.Info(
			"Client switched room",
			slog.Any(constant.ClientID, clientID),
			slog.String("from", res.Left.Room),
			slog.String("to", res.Room),
		)

		if err = s.notifyPeers(res.Left.Remaining, events.TypePeerLeft, clientID); err != nil {
			return fmt.Errorf("notify peer left: %w", err)
		}
	}

	slog.Info("Client joined room", slog.Any(constant.ClientID, clientID), slog.String(constant.RoomName, res.Room))

	if err = s.notifyPeers(res.Existing, events.TypeNewPeer, clientID); err != nil {
		return fmt.Errorf("notify new peer: %w", err)
	}

	if err = s.broadcastRooms(res.Rooms); err != nil {
		return fmt.Errorf("broadcast rooms: %w", err)
	}

	return nil
}

func (s *signalingUsecase) HandleLeave(ctx context.Context, clientID uuid.UUID) error {
	return s.leave(ctx, clientID)
}

func (s *signalingUsecase) HandleOffer(ctx context.Context, clientID uuid.UUID, offer events.SdpEvent) error {
	return s.relay(ctx, clientID, events.TypeOffer, offer.TargetID, events.RelayedSdpEvent{
		SDP:    offer.SDP,
		FromID: clientID.String(),
	})
}

func (s *signalingUsecase) HandleAnswer(ctx context.Context, clientID uuid.UUID, answer events.SdpEvent) error {
	return s.relay(ctx, clientID, events.TypeAnswer, answer.TargetID, events.RelayedSdpEvent{
		SDP:    answer.SDP,
		FromID: clientID.String(),
	})
}

func (s *signalingUsecase) HandleCandidate(ctx context.Context, clientID uuid.UUID, candidate events.IceCandidateEvent) error {
	if len(candidate.Candidate) == 0 {
		s.SendError(ctx, clientID, "candidate is required")
		return nil
	}

	return s.relay(ctx, clientID, events.TypeIceCandidate, candidate.TargetID, events.RelayedIceCandidateEvent{
		Candidate: candidate.Candidate,
		FromID:    clientID.String(),
	})
}

func (s *signalingUsecase) HandlePing(ctx context.Context, clientID uuid.UUID) {
	s.wsRepo.Write(clientID, events.Message{Type: events.TypePong})
}

func (s *signalingUsecase) SendError(ctx context.Context, clientID uuid.UUID, message string) {
	if err := s.send(clientID, events.TypeError, events.ErrorEvent{Message: message}); err != nil {
		slog.Error("send error message", slog.Any(constant.ClientID, clientID), slog.Any(constant.Error, err))
	}
}

func (s *signalingUsecase) Rooms(ctx context.Context) domain.RoomListing {
	return s.registry.Snapshot()
}

// relay forwards payload to target untouched. A target that is not connected is dropped silently.
func (s *signalingUsecase) relay(ctx context.Context, clientID uuid.UUID, msgType string, target string, payload any) error {
	targetID, err := uuid.Parse(target)
	if err != nil {
		s.SendError(ctx, clientID, domain.ErrInvalidTargetID.Error())
		return nil
	}

	if !s.wsRepo.IsConnected(targetID) {
		metric.IncRelayDropped(metric.DropReasonTargetNotFound)
		slog.Warn(
			"relay target not connected, dropping",
			slog.String(constant.Type, msgType),
			slog.Any(constant.ClientID, clientID),
			slog.Any(constant.TargetID, targetID),
		)
		return nil
	}

	msg, err := events.NewMessage(msgType, payload)
	if err != nil {
		return err
	}

	if !s.wsRepo.Write(targetID, msg) {
		slog.Warn(
			"relay target went away, dropping",
			slog.String(constant.Type, msgType),
			slog.Any(constant.TargetID, targetID),
		)
	}

	return nil
}

func (s *signalingUsecase) leave(ctx context.Context, clientID uuid.UUID) error {
	res, ok := s.registry.Leave(clientID)
	if !ok {
		return nil
	}

	slog.Info(
		"Client left room",
		slog.Any(constant.ClientID, clientID),
		slog.String(constant.RoomName, res.Room),
		slog.Bool("room_deleted", res.Deleted),
	)

	if err := s.notifyPeers(res.Remaining, events.TypePeerLeft, clientID); err != nil {
		return fmt.Errorf("notify peer left: %w", err)
	}

	if err := s.broadcastRooms(res.Rooms); err != nil {
		return fmt.Errorf("broadcast rooms: %w", err)
	}

	return nil
}

func (s *signalingUsecase) notifyPeers(peers []uuid.UUID, msgType string, about uuid.UUID) error {
	if len(peers) == 0 {
		return nil
	}

	msg, err := events.NewMessage(msgType, events.PeerEvent{ID: about.String()})
	if err != nil {
		return err
	}

	for _, peer := range peers {
		s.wsRepo.Write(peer, msg)
	}

	return nil
}

func (s *signalingUsecase) broadcastRooms(rooms domain.RoomListing) error {
	metric.SetRoomStats(s.registry.Stats())

	msg, err := events.NewMessage(events.TypeUpdateRooms, rooms)
	if err != nil {
		return err
	}

	s.wsRepo.Broadcast(msg)

	return nil
}

func (s *signalingUsecase) send(clientID uuid.UUID, msgType string, data any) error {
	msg, err := events.NewMessage(msgType, data)
	if err != nil {
		return err
	}

	s.wsRepo.Write(clientID, msg)

	return nil
}
