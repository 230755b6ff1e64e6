package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/hideseek/internal/api/hideseekv1"
	"github.com/osa030/hideseek/internal/app/notification"
	"github.com/osa030/hideseek/internal/app/scheduler"
	"github.com/osa030/hideseek/internal/app/session"
	"github.com/osa030/hideseek/internal/domain/game"
	"github.com/osa030/hideseek/internal/infra/config"
	"github.com/osa030/hideseek/internal/infra/memstore"
)

const testToken = "s3cret"

type testServer struct {
	url     string
	gateway *notification.Gateway
	game    *hideseekv1.GameServiceClient
	admin   *hideseekv1.AdminServiceClient
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Admin.Token = testToken

	store := memstore.New(cfg.Automation)
	sched := scheduler.New(scheduler.Config{Workers: 1})
	gw := notification.NewGateway(notification.Config{})
	gw.Start(context.Background())
	t.Cleanup(gw.Close)

	mgr, err := session.NewManager(cfg, store, sched, gw)
	require.NoError(t, err)

	done := make(chan struct{})
	mux := http.NewServeMux()
	mux.Handle(hideseekv1.NewGameServiceHandler(NewGameService(mgr, gw, cfg, done)))
	mux.Handle(hideseekv1.NewAdminServiceHandler(
		NewAdminService(mgr, cfg),
		connect.WithInterceptors(NewAdminAuthInterceptor(cfg.Admin.Token)),
	))
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		close(done)
		srv.Close()
	})

	return &testServer{
		url:     srv.URL,
		gateway: gw,
		game:    hideseekv1.NewGameServiceClient(srv.Client(), srv.URL),
		admin: hideseekv1.NewAdminServiceClient(srv.Client(), srv.URL,
			connect.WithInterceptors(NewAdminAuthInterceptor(testToken))),
	}
}

func (s *testServer) createSession(t *testing.T) *hideseekv1.Session {
	t.Helper()
	resp, err := s.admin.CreateSession(context.Background(), connect.NewRequest(&hideseekv1.CreateSessionRequest{
		District:        "downtown",
		ScheduledAt:     time.Now().Add(time.Hour),
		MaxParticipants: 4,
		MaxDrivers:      1,
		Description:     "rpc game",
	}))
	require.NoError(t, err)
	return resp.Msg.Session
}

func (s *testServer) join(t *testing.T, sessionID string, users ...string) {
	t.Helper()
	for _, u := range users {
		_, err := s.game.Join(context.Background(), connect.NewRequest(&hideseekv1.JoinRequest{SessionID: sessionID, UserID: u}))
		require.NoError(t, err)
	}
}

func TestAdminService_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	anonymous := hideseekv1.NewAdminServiceClient(http.DefaultClient, s.url)
	_, err := anonymous.GetStats(ctx, connect.NewRequest(&hideseekv1.GetStatsRequest{}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	wrong := hideseekv1.NewAdminServiceClient(http.DefaultClient, s.url,
		connect.WithInterceptors(NewAdminAuthInterceptor("guess")))
	_, err = wrong.GetStats(ctx, connect.NewRequest(&hideseekv1.GetStatsRequest{}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	_, err = s.admin.GetStats(ctx, connect.NewRequest(&hideseekv1.GetStatsRequest{}))
	assert.NoError(t, err)
}

func TestServices_GameFlow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	created := s.createSession(t)
	assert.Equal(t, "recruitment", created.Status)
	assert.Equal(t, "admin", created.CreatorID)
	assert.Equal(t, 1, created.PendingTriggers)

	upcoming, err := s.game.ListUpcoming(ctx, connect.NewRequest(&hideseekv1.ListUpcomingRequest{District: "downtown"}))
	require.NoError(t, err)
	require.Len(t, upcoming.Msg.Sessions, 1)

	s.join(t, created.ID, "u1", "u2", "u3")

	moved, err := s.admin.Transition(ctx, connect.NewRequest(&hideseekv1.TransitionRequest{
		SessionID: created.ID, Target: "hiding",
	}))
	require.NoError(t, err)
	assert.Equal(t, "hiding", moved.Msg.Session.Status)
	assert.NotEmpty(t, moved.Msg.Message)
	require.NotNil(t, moved.Msg.Session.HidingAt)

	got, err := s.game.GetSession(ctx, connect.NewRequest(&hideseekv1.GetSessionRequest{SessionID: created.ID}))
	require.NoError(t, err)
	drivers := 0
	for _, p := range got.Msg.Participants {
		assert.NotEqual(t, "none", p.Role)
		if p.Role == "driver" {
			drivers++
		}
	}
	assert.Equal(t, 1, drivers)

	_, err = s.game.Join(ctx, connect.NewRequest(&hideseekv1.JoinRequest{SessionID: created.ID, UserID: "late"}))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	stats, err := s.admin.GetStats(ctx, connect.NewRequest(&hideseekv1.GetStatsRequest{}))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Msg.Stats.Hiding)
	assert.Equal(t, 3, stats.Msg.Stats.Participants)
}

func TestServices_ErrorCodes(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.game.GetSession(ctx, connect.NewRequest(&hideseekv1.GetSessionRequest{SessionID: "missing"}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = s.game.Join(ctx, connect.NewRequest(&hideseekv1.JoinRequest{SessionID: "missing", UserID: "u1", PreferredRole: "pilot"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	created := s.createSession(t)
	s.join(t, created.ID, "u1", "u2", "u3", "u4")
	_, err = s.game.Join(ctx, connect.NewRequest(&hideseekv1.JoinRequest{SessionID: created.ID, UserID: "u5"}))
	assert.Equal(t, connect.CodeResourceExhausted, connect.CodeOf(err))

	_, err = s.admin.Transition(ctx, connect.NewRequest(&hideseekv1.TransitionRequest{SessionID: created.ID, Target: "finished"}))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	_, err = s.admin.Transition(ctx, connect.NewRequest(&hideseekv1.TransitionRequest{SessionID: created.ID, Target: "paused"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = s.admin.UpdateSettings(ctx, connect.NewRequest(&hideseekv1.UpdateSettingsRequest{Patch: map[string]any{"warpSpeed": true}}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestAdminService_Settings(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	updated, err := s.admin.UpdateSettings(ctx, connect.NewRequest(&hideseekv1.UpdateSettingsRequest{
		Patch: map[string]any{"manualControlMode": true, "hidingDuration": "20m"},
	}))
	require.NoError(t, err)
	assert.True(t, updated.Msg.Settings.ManualControlMode)
	assert.Equal(t, "20m0s", updated.Msg.Settings.HidingDuration)

	got, err := s.admin.GetSettings(ctx, connect.NewRequest(&hideseekv1.GetSettingsRequest{}))
	require.NoError(t, err)
	assert.Equal(t, updated.Msg.Settings, got.Msg.Settings)
}

func TestGameService_Subscribe(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	created := s.createSession(t)
	s.join(t, created.ID, "u1", "u2")

	stream, err := s.game.Subscribe(ctx, connect.NewRequest(&hideseekv1.SubscribeRequest{UserID: "u1"}))
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Receive(), "first message: %v", stream.Err())
	assert.Equal(t, notification.KindSubscribed, stream.Msg().Kind)
	require.Eventually(t, func() bool { return s.gateway.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = s.admin.Transition(ctx, connect.NewRequest(&hideseekv1.TransitionRequest{SessionID: created.ID, Target: "hiding"}))
	require.NoError(t, err)

	kinds := map[string]bool{}
	for len(kinds) < 2 && stream.Receive() {
		msg := stream.Msg()
		assert.Equal(t, created.ID, msg.SessionID)
		kinds[msg.Kind] = true
	}
	assert.True(t, kinds[notification.KindPhaseChanged])
	assert.True(t, kinds[notification.KindRoleAssigned])
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want connect.Code
	}{
		{game.Validationf("bad"), connect.CodeInvalidArgument},
		{game.Statef("closed"), connect.CodeFailedPrecondition},
		{game.InvalidTransition(game.StatusFinished, game.StatusHiding), connect.CodeFailedPrecondition},
		{errors.Mark(errors.New("full"), game.ErrCapacity), connect.CodeResourceExhausted},
		{errors.Mark(errors.New("busy"), game.ErrConcurrency), connect.CodeAborted},
		{errors.Mark(errors.New("done"), game.ErrAlreadyAssigned), connect.CodeAlreadyExists},
		{errors.Mark(errors.New("outside"), game.ErrRejected), connect.CodePermissionDenied},
		{errors.New("boom"), connect.CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, codeOf(tt.err), tt.err.Error())
	}
}
