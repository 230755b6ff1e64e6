package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/osa030/hideseek/internal/api/hideseekv1"
	"github.com/osa030/hideseek/internal/app/session"
	"github.com/osa030/hideseek/internal/domain/game"
	"github.com/osa030/hideseek/internal/infra/config"
)

// defaultActor is recorded when an admin call names no actor.
const defaultActor = "admin"

// AdminService implements the AdminService RPC.
type AdminService struct {
	session *session.Manager
	config  *config.Config
}

// NewAdminService creates a new AdminService.
func NewAdminService(mgr *session.Manager, cfg *config.Config) *AdminService {
	return &AdminService{
		session: mgr,
		config:  cfg,
	}
}

// Ensure AdminService implements the interface.
var _ hideseekv1.AdminServiceHandler = (*AdminService)(nil)

func actorOf(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return defaultActor
	}
	return actor
}

// CreateSession creates a session and arms its start trigger.
func (s *AdminService) CreateSession(
	ctx context.Context,
	req *connect.Request[hideseekv1.CreateSessionRequest],
) (*connect.Response[hideseekv1.CreateSessionResponse], error) {
	m := req.Msg
	sess, err := s.session.CreateSession(ctx, game.NewSessionParams{
		District:        m.District,
		MaxParticipants: m.MaxParticipants,
		MaxDrivers:      m.MaxDrivers,
		ScheduledAt:     m.ScheduledAt,
		CreatorID:       actorOf(m.CreatorID),
		Description:     m.Description,
		Zone:            fromZone(m.Zone, m.District),
	})
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	return connect.NewResponse(&hideseekv1.CreateSessionResponse{
		Session: toSession(sess, s.session.PendingTriggers(sess.ID)),
	}), nil
}

// Transition moves a session to the target phase manually.
func (s *AdminService) Transition(
	ctx context.Context,
	req *connect.Request[hideseekv1.TransitionRequest],
) (*connect.Response[hideseekv1.TransitionResponse], error) {
	target, err := game.ParseStatus(req.Msg.Target)
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	sess, err := s.session.RequestTransition(ctx, session.TransitionRequest{
		SessionID: req.Msg.SessionID,
		Target:    target,
		Actor:     actorOf(req.Msg.Actor),
		Mode:      game.ModeManual,
	})
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	return connect.NewResponse(&hideseekv1.TransitionResponse{
		Session: toSession(sess, s.session.PendingTriggers(sess.ID)),
		Message: s.config.GetMessage(phaseCode(sess.Status)),
	}), nil
}

func phaseCode(st game.Status) string {
	switch st {
	case game.StatusHiding:
		return "hiding_started"
	case game.StatusSearching:
		return "searching_started"
	case game.StatusFinished:
		return "game_finished"
	case game.StatusCancelled:
		return "game_cancelled"
	default:
		return ""
	}
}

// ListParticipants lists the participants of a session.
func (s *AdminService) ListParticipants(
	ctx context.Context,
	req *connect.Request[hideseekv1.ListParticipantsRequest],
) (*connect.Response[hideseekv1.ListParticipantsResponse], error) {
	participants, err := s.session.ListParticipants(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	return connect.NewResponse(&hideseekv1.ListParticipantsResponse{Participants: toParticipants(participants)}), nil
}

// AssignRoles runs role assignment ahead of the start.
func (s *AdminService) AssignRoles(
	ctx context.Context,
	req *connect.Request[hideseekv1.AssignRolesRequest],
) (*connect.Response[hideseekv1.AssignRolesResponse], error) {
	if _, err := s.session.AssignRoles(ctx, req.Msg.SessionID, actorOf(req.Msg.Actor)); err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	participants, err := s.session.ListParticipants(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	return connect.NewResponse(&hideseekv1.AssignRolesResponse{Participants: toParticipants(participants)}), nil
}

// ResetRoles clears the assigned roles of a session.
func (s *AdminService) ResetRoles(
	ctx context.Context,
	req *connect.Request[hideseekv1.ResetRolesRequest],
) (*connect.Response[hideseekv1.ResetRolesResponse], error) {
	n, err := s.session.ResetRoles(ctx, req.Msg.SessionID, actorOf(req.Msg.Actor))
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	return connect.NewResponse(&hideseekv1.ResetRolesResponse{Cleared: n}), nil
}

// ApprovePhoto accepts a pending photo.
func (s *AdminService) ApprovePhoto(
	ctx context.Context,
	req *connect.Request[hideseekv1.DecidePhotoRequest],
) (*connect.Response[hideseekv1.DecidePhotoResponse], error) {
	photo, err := s.session.ApprovePhoto(ctx, req.Msg.PhotoID, actorOf(req.Msg.Actor))
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	return connect.NewResponse(&hideseekv1.DecidePhotoResponse{Photo: toPhoto(photo)}), nil
}

// RejectPhoto refuses a pending photo.
func (s *AdminService) RejectPhoto(
	ctx context.Context,
	req *connect.Request[hideseekv1.DecidePhotoRequest],
) (*connect.Response[hideseekv1.DecidePhotoResponse], error) {
	photo, err := s.session.RejectPhoto(ctx, req.Msg.PhotoID, actorOf(req.Msg.Actor))
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	return connect.NewResponse(&hideseekv1.DecidePhotoResponse{Photo: toPhoto(photo)}), nil
}

// ListPhotos lists the photos of a session.
func (s *AdminService) ListPhotos(
	ctx context.Context,
	req *connect.Request[hideseekv1.ListPhotosRequest],
) (*connect.Response[hideseekv1.ListPhotosResponse], error) {
	photos, err := s.session.ListPhotos(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	out := make([]*hideseekv1.Photo, len(photos))
	for i, p := range photos {
		out[i] = toPhoto(p)
	}
	return connect.NewResponse(&hideseekv1.ListPhotosResponse{Photos: out}), nil
}

// GetStats returns the counters of the games in progress.
func (s *AdminService) GetStats(
	ctx context.Context,
	req *connect.Request[hideseekv1.GetStatsRequest],
) (*connect.Response[hideseekv1.GetStatsResponse], error) {
	stats, err := s.session.GetActiveStats(ctx)
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	return connect.NewResponse(&hideseekv1.GetStatsResponse{Stats: toStats(stats)}), nil
}

// GetSettings returns the automation settings.
func (s *AdminService) GetSettings(
	ctx context.Context,
	req *connect.Request[hideseekv1.GetSettingsRequest],
) (*connect.Response[hideseekv1.GetSettingsResponse], error) {
	return connect.NewResponse(&hideseekv1.GetSettingsResponse{
		Settings: toSettings(s.session.GetSettings(ctx)),
	}), nil
}

// UpdateSettings applies a partial settings update.
func (s *AdminService) UpdateSettings(
	ctx context.Context,
	req *connect.Request[hideseekv1.UpdateSettingsRequest],
) (*connect.Response[hideseekv1.UpdateSettingsResponse], error) {
	settings, err := s.session.UpdateSettings(ctx, req.Msg.Patch)
	if err != nil {
		return nil, toConnectError(req.Spec().Procedure, err)
	}
	return connect.NewResponse(&hideseekv1.UpdateSettingsResponse{Settings: toSettings(settings)}), nil
}
