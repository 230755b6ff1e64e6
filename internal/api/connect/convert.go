package connect

import (
	"github.com/osa030/hideseek/internal/api/hideseekv1"
	"github.com/osa030/hideseek/internal/app/automation"
	"github.com/osa030/hideseek/internal/app/notification"
	"github.com/osa030/hideseek/internal/app/session"
	"github.com/osa030/hideseek/internal/domain/game"
	"github.com/osa030/hideseek/internal/domain/geo"
)

func toSession(s *game.Session, pending int) *hideseekv1.Session {
	out := &hideseekv1.Session{
		ID:              s.ID,
		District:        s.District,
		ScheduledAt:     s.ScheduledAt,
		Status:          s.Status.String(),
		MaxParticipants: s.MaxParticipants,
		MaxDrivers:      s.MaxDrivers,
		CreatorID:       s.CreatorID,
		Description:     s.Description,
		CreatedAt:       s.CreatedAt,
		HidingAt:        s.HidingAt,
		SearchingAt:     s.SearchingAt,
		EndedAt:         s.EndedAt,
		PendingTriggers: pending,
	}
	if s.Zone != nil {
		out.Zone = &hideseekv1.Zone{
			ID:           s.Zone.ID,
			Name:         s.Zone.Name,
			Lat:          s.Zone.Lat,
			Lon:          s.Zone.Lon,
			RadiusMeters: s.Zone.RadiusMeters,
		}
	}
	return out
}

func fromZone(z *hideseekv1.Zone, district string) *game.Zone {
	if z == nil {
		return nil
	}
	return &game.Zone{
		ID:           z.ID,
		District:     district,
		Name:         z.Name,
		Lat:          z.Lat,
		Lon:          z.Lon,
		RadiusMeters: z.RadiusMeters,
		Active:       true,
	}
}

func toParticipant(p *game.Participant) *hideseekv1.Participant {
	return &hideseekv1.Participant{
		UserID:        p.UserID,
		Role:          p.Role.String(),
		PreferredRole: p.PreferredRole.String(),
		JoinedAt:      p.JoinedAt,
	}
}

func toParticipants(ps []*game.Participant) []*hideseekv1.Participant {
	out := make([]*hideseekv1.Participant, len(ps))
	for i, p := range ps {
		out[i] = toParticipant(p)
	}
	return out
}

func toPhoto(p *game.Photo) *hideseekv1.Photo {
	return &hideseekv1.Photo{
		ID:          p.ID,
		SessionID:   p.SessionID,
		UserID:      p.UserID,
		FileRef:     p.FileRef,
		Lat:         p.Lat,
		Lon:         p.Lon,
		InsideZone:  p.InsideZone,
		Status:      p.Status.String(),
		SubmittedAt: p.SubmittedAt,
		DecidedAt:   p.DecidedAt,
		DecidedBy:   p.DecidedBy,
	}
}

func toNeighbors(ns []geo.Neighbor) []*hideseekv1.Neighbor {
	out := make([]*hideseekv1.Neighbor, len(ns))
	for i, n := range ns {
		out[i] = &hideseekv1.Neighbor{
			UserID:         n.ID,
			Lat:            n.Point.Lat,
			Lon:            n.Point.Lon,
			DistanceMeters: n.DistanceMeters,
		}
	}
	return out
}

func toSettings(s automation.Settings) *hideseekv1.Settings {
	return &hideseekv1.Settings{
		AutoStartGame:          s.AutoStartGame,
		AutoStartHiding:        s.AutoStartHiding,
		AutoStartSearching:     s.AutoStartSearching,
		AutoEndGame:            s.AutoEndGame,
		AutoAssignRoles:        s.AutoAssignRoles,
		ManualControlMode:      s.ManualControlMode,
		HidingDuration:         s.HidingDuration.String(),
		SearchingDuration:      s.SearchingDuration.String(),
		MinParticipantsToStart: s.MinParticipantsToStart,
	}
}

func toStats(s *session.Stats) *hideseekv1.Stats {
	return &hideseekv1.Stats{
		Recruiting:      s.Recruiting,
		Hiding:          s.Hiding,
		Searching:       s.Searching,
		Participants:    s.Participants,
		Drivers:         s.Drivers,
		Seekers:         s.Seekers,
		Observers:       s.Observers,
		PendingTriggers: s.PendingTriggers,
	}
}

func toNotification(m notification.Message) *hideseekv1.Notification {
	return &hideseekv1.Notification{
		SequenceNo: m.SequenceNo,
		Kind:       m.Kind,
		SessionID:  m.SessionID,
		Text:       m.Text,
		Data:       m.Data,
		CreatedAt:  m.CreatedAt,
	}
}
