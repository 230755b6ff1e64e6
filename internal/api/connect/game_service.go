package connect

import (
	"context"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/hideseek/internal/api/hideseekv1"
	"github.com/osa030/hideseek/internal/app/notification"
	"github.com/osa030/hideseek/internal/app/session"
	"github.com/osa030/hideseek/internal/domain/game"
	"github.com/osa030/hideseek/internal/infra/config"
)

// GameService implements the participant-facing GameService RPC.
type GameService struct {
	session *session.Manager
	gateway *notification.Gateway
	config  *config.Config
	done    <-chan struct{}
}

// NewGameService creates a new GameService. Subscribe streams end when done
// is closed.
func NewGameService(mgr *session.Manager, gateway *notification.Gateway, cfg *config.Config, done <-chan struct{}) *GameService {
	return &GameService{
		session: mgr,
		gateway: gateway,
		config:  cfg,
		done:    done,
	}
}

// Ensure GameService implements the interface.
var _ hideseekv1.GameServiceHandler = (*GameService)(nil)

// ListUpcoming lists the sessions open for joining.
func (s *GameService) ListUpcoming(
	ctx context.Context,
	req *connect.Request[hideseekv1.ListUpcomingRequest],
) (*connect.Response[hideseekv1.ListUpcomingResponse], error) {
	sessions, err := s.session.ListUpcoming(ctx, req.Msg.District)
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}

	out := make([]*hideseekv1.Session, len(sessions))
	for i, sess := range sessions {
		out[i] = toSession(sess, s.session.PendingTriggers(sess.ID))
	}
	return connect.NewResponse(&hideseekv1.ListUpcomingResponse{Sessions: out}), nil
}

// GetSession returns a session with its participants.
func (s *GameService) GetSession(
	ctx context.Context,
	req *connect.Request[hideseekv1.GetSessionRequest],
) (*connect.Response[hideseekv1.GetSessionResponse], error) {
	sess, err := s.session.GetSession(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	participants, err := s.session.ListParticipants(ctx, sess.ID)
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}

	return connect.NewResponse(&hideseekv1.GetSessionResponse{
		Session:      toSession(sess, s.session.PendingTriggers(sess.ID)),
		Participants: toParticipants(participants),
	}), nil
}

// Join adds the caller to a recruiting session.
func (s *GameService) Join(
	ctx context.Context,
	req *connect.Request[hideseekv1.JoinRequest],
) (*connect.Response[hideseekv1.JoinResponse], error) {
	pref, err := game.ParseRole(req.Msg.PreferredRole)
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	p, err := s.session.Join(ctx, req.Msg.SessionID, req.Msg.UserID, pref)
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	return connect.NewResponse(&hideseekv1.JoinResponse{Participant: toParticipant(p)}), nil
}

// Leave removes the caller from a recruiting session.
func (s *GameService) Leave(
	ctx context.Context,
	req *connect.Request[hideseekv1.LeaveRequest],
) (*connect.Response[hideseekv1.LeaveResponse], error) {
	if err := s.session.Leave(ctx, req.Msg.SessionID, req.Msg.UserID); err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	return connect.NewResponse(&hideseekv1.LeaveResponse{}), nil
}

// SubmitLocation records a position report.
func (s *GameService) SubmitLocation(
	ctx context.Context,
	req *connect.Request[hideseekv1.SubmitLocationRequest],
) (*connect.Response[hideseekv1.SubmitLocationResponse], error) {
	res, err := s.session.SubmitLocation(ctx, session.LocationInput{
		SessionID:  req.Msg.SessionID,
		UserID:     req.Msg.UserID,
		Lat:        req.Msg.Lat,
		Lon:        req.Msg.Lon,
		ObservedAt: req.Msg.ObservedAt,
	})
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}

	resp := &hideseekv1.SubmitLocationResponse{
		Sequence:   res.Location.Sequence,
		InsideZone: res.InsideZone,
		Flags:      res.Flags,
	}
	if !res.InsideZone {
		resp.Message = s.config.GetMessage("outside_zone")
	}
	return connect.NewResponse(resp), nil
}

// SubmitPhoto stores a photo for moderation.
func (s *GameService) SubmitPhoto(
	ctx context.Context,
	req *connect.Request[hideseekv1.SubmitPhotoRequest],
) (*connect.Response[hideseekv1.SubmitPhotoResponse], error) {
	photo, err := s.session.SubmitPhoto(ctx, session.PhotoInput{
		SessionID: req.Msg.SessionID,
		UserID:    req.Msg.UserID,
		FileRef:   req.Msg.FileRef,
		Lat:       req.Msg.Lat,
		Lon:       req.Msg.Lon,
	})
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	return connect.NewResponse(&hideseekv1.SubmitPhotoResponse{
		Photo:   toPhoto(photo),
		Message: s.config.GetMessage("photo_submitted"),
	}), nil
}

// Nearby lists the participants around the caller.
func (s *GameService) Nearby(
	ctx context.Context,
	req *connect.Request[hideseekv1.NearbyRequest],
) (*connect.Response[hideseekv1.NearbyResponse], error) {
	neighbors, err := s.session.Nearby(ctx, req.Msg.SessionID, req.Msg.UserID, req.Msg.RadiusMeters)
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	return connect.NewResponse(&hideseekv1.NearbyResponse{Neighbors: toNeighbors(neighbors)}), nil
}

// Subscribe streams the notifications addressed to the caller until the
// client goes away or the server shuts down.
func (s *GameService) Subscribe(
	ctx context.Context,
	req *connect.Request[hideseekv1.SubscribeRequest],
	stream *connect.ServerStream[hideseekv1.Notification],
) error {
	if req.Msg.UserID == "" {
		return toConnectError(req.Spec().Procedure, game.Validationf("user ID is required"))
	}

	// The first message carries the current sequence number so the client
	// can detect gaps.
	if err := stream.Send(&hideseekv1.Notification{
		SequenceNo: s.gateway.NextSequenceNo(),
		Kind:       notification.KindSubscribed,
		Text:       s.config.GetMessage("subscribed"),
	}); err != nil {
		return err
	}

	id := s.gateway.Subscribe(req.Msg.UserID, &notificationStreamAdapter{stream: stream})
	defer s.gateway.Unsubscribe(id)
	zlog.Info().Msgf("subscriber connected: user=%s subscription=%s", req.Msg.UserID, id)

	select {
	case <-ctx.Done():
	case <-s.done:
	}
	zlog.Info().Msgf("subscriber disconnected: user=%s subscription=%s", req.Msg.UserID, id)
	return nil
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
type notificationStreamAdapter struct {
	stream *connect.ServerStream[hideseekv1.Notification]
}

func (a *notificationStreamAdapter) Send(msg notification.Message) error {
	return a.stream.Send(toNotification(msg))
}
