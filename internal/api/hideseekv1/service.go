package hideseekv1

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

const (
	// GameServiceName is the fully-qualified name of the GameService service.
	GameServiceName = "hideseek.v1.GameService"
	// AdminServiceName is the fully-qualified name of the AdminService service.
	AdminServiceName = "hideseek.v1.AdminService"
)

// Procedure paths.
const (
	GameServiceListUpcomingProcedure   = "/hideseek.v1.GameService/ListUpcoming"
	GameServiceGetSessionProcedure     = "/hideseek.v1.GameService/GetSession"
	GameServiceJoinProcedure           = "/hideseek.v1.GameService/Join"
	GameServiceLeaveProcedure          = "/hideseek.v1.GameService/Leave"
	GameServiceSubmitLocationProcedure = "/hideseek.v1.GameService/SubmitLocation"
	GameServiceSubmitPhotoProcedure    = "/hideseek.v1.GameService/SubmitPhoto"
	GameServiceNearbyProcedure         = "/hideseek.v1.GameService/Nearby"
	GameServiceSubscribeProcedure      = "/hideseek.v1.GameService/Subscribe"

	AdminServiceCreateSessionProcedure    = "/hideseek.v1.AdminService/CreateSession"
	AdminServiceTransitionProcedure       = "/hideseek.v1.AdminService/Transition"
	AdminServiceListParticipantsProcedure = "/hideseek.v1.AdminService/ListParticipants"
	AdminServiceAssignRolesProcedure      = "/hideseek.v1.AdminService/AssignRoles"
	AdminServiceResetRolesProcedure       = "/hideseek.v1.AdminService/ResetRoles"
	AdminServiceApprovePhotoProcedure     = "/hideseek.v1.AdminService/ApprovePhoto"
	AdminServiceRejectPhotoProcedure      = "/hideseek.v1.AdminService/RejectPhoto"
	AdminServiceListPhotosProcedure       = "/hideseek.v1.AdminService/ListPhotos"
	AdminServiceGetStatsProcedure         = "/hideseek.v1.AdminService/GetStats"
	AdminServiceGetSettingsProcedure      = "/hideseek.v1.AdminService/GetSettings"
	AdminServiceUpdateSettingsProcedure   = "/hideseek.v1.AdminService/UpdateSettings"
)

// GameServiceHandler is the participant-facing service.
type GameServiceHandler interface {
	ListUpcoming(context.Context, *connect.Request[ListUpcomingRequest]) (*connect.Response[ListUpcomingResponse], error)
	GetSession(context.Context, *connect.Request[GetSessionRequest]) (*connect.Response[GetSessionResponse], error)
	Join(context.Context, *connect.Request[JoinRequest]) (*connect.Response[JoinResponse], error)
	Leave(context.Context, *connect.Request[LeaveRequest]) (*connect.Response[LeaveResponse], error)
	SubmitLocation(context.Context, *connect.Request[SubmitLocationRequest]) (*connect.Response[SubmitLocationResponse], error)
	SubmitPhoto(context.Context, *connect.Request[SubmitPhotoRequest]) (*connect.Response[SubmitPhotoResponse], error)
	Nearby(context.Context, *connect.Request[NearbyRequest]) (*connect.Response[NearbyResponse], error)
	Subscribe(context.Context, *connect.Request[SubscribeRequest], *connect.ServerStream[Notification]) error
}

// AdminServiceHandler is the operator service. Every call carries the admin
// token header.
type AdminServiceHandler interface {
	CreateSession(context.Context, *connect.Request[CreateSessionRequest]) (*connect.Response[CreateSessionResponse], error)
	Transition(context.Context, *connect.Request[TransitionRequest]) (*connect.Response[TransitionResponse], error)
	ListParticipants(context.Context, *connect.Request[ListParticipantsRequest]) (*connect.Response[ListParticipantsResponse], error)
	AssignRoles(context.Context, *connect.Request[AssignRolesRequest]) (*connect.Response[AssignRolesResponse], error)
	ResetRoles(context.Context, *connect.Request[ResetRolesRequest]) (*connect.Response[ResetRolesResponse], error)
	ApprovePhoto(context.Context, *connect.Request[DecidePhotoRequest]) (*connect.Response[DecidePhotoResponse], error)
	RejectPhoto(context.Context, *connect.Request[DecidePhotoRequest]) (*connect.Response[DecidePhotoResponse], error)
	ListPhotos(context.Context, *connect.Request[ListPhotosRequest]) (*connect.Response[ListPhotosResponse], error)
	GetStats(context.Context, *connect.Request[GetStatsRequest]) (*connect.Response[GetStatsResponse], error)
	GetSettings(context.Context, *connect.Request[GetSettingsRequest]) (*connect.Response[GetSettingsResponse], error)
	UpdateSettings(context.Context, *connect.Request[UpdateSettingsRequest]) (*connect.Response[UpdateSettingsResponse], error)
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
}

// mux routes procedure paths to their handlers.
type mux map[string]http.Handler

func (m mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.URL.Path]; ok {
		h.ServeHTTP(w, r)
		return
	}
	http.NotFound(w, r)
}

// NewGameServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewGameServiceHandler(svc GameServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + GameServiceName + "/", mux{
		GameServiceListUpcomingProcedure:   connect.NewUnaryHandler(GameServiceListUpcomingProcedure, svc.ListUpcoming, opts...),
		GameServiceGetSessionProcedure:     connect.NewUnaryHandler(GameServiceGetSessionProcedure, svc.GetSession, opts...),
		GameServiceJoinProcedure:           connect.NewUnaryHandler(GameServiceJoinProcedure, svc.Join, opts...),
		GameServiceLeaveProcedure:          connect.NewUnaryHandler(GameServiceLeaveProcedure, svc.Leave, opts...),
		GameServiceSubmitLocationProcedure: connect.NewUnaryHandler(GameServiceSubmitLocationProcedure, svc.SubmitLocation, opts...),
		GameServiceSubmitPhotoProcedure:    connect.NewUnaryHandler(GameServiceSubmitPhotoProcedure, svc.SubmitPhoto, opts...),
		GameServiceNearbyProcedure:         connect.NewUnaryHandler(GameServiceNearbyProcedure, svc.Nearby, opts...),
		GameServiceSubscribeProcedure:      connect.NewServerStreamHandler(GameServiceSubscribeProcedure, svc.Subscribe, opts...),
	}
}

// NewAdminServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewAdminServiceHandler(svc AdminServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + AdminServiceName + "/", mux{
		AdminServiceCreateSessionProcedure:    connect.NewUnaryHandler(AdminServiceCreateSessionProcedure, svc.CreateSession, opts...),
		AdminServiceTransitionProcedure:       connect.NewUnaryHandler(AdminServiceTransitionProcedure, svc.Transition, opts...),
		AdminServiceListParticipantsProcedure: connect.NewUnaryHandler(AdminServiceListParticipantsProcedure, svc.ListParticipants, opts...),
		AdminServiceAssignRolesProcedure:      connect.NewUnaryHandler(AdminServiceAssignRolesProcedure, svc.AssignRoles, opts...),
		AdminServiceResetRolesProcedure:       connect.NewUnaryHandler(AdminServiceResetRolesProcedure, svc.ResetRoles, opts...),
		AdminServiceApprovePhotoProcedure:     connect.NewUnaryHandler(AdminServiceApprovePhotoProcedure, svc.ApprovePhoto, opts...),
		AdminServiceRejectPhotoProcedure:      connect.NewUnaryHandler(AdminServiceRejectPhotoProcedure, svc.RejectPhoto, opts...),
		AdminServiceListPhotosProcedure:       connect.NewUnaryHandler(AdminServiceListPhotosProcedure, svc.ListPhotos, opts...),
		AdminServiceGetStatsProcedure:         connect.NewUnaryHandler(AdminServiceGetStatsProcedure, svc.GetStats, opts...),
		AdminServiceGetSettingsProcedure:      connect.NewUnaryHandler(AdminServiceGetSettingsProcedure, svc.GetSettings, opts...),
		AdminServiceUpdateSettingsProcedure:   connect.NewUnaryHandler(AdminServiceUpdateSettingsProcedure, svc.UpdateSettings, opts...),
	}
}

// GameServiceClient is a client for the GameService service.
type GameServiceClient struct {
	listUpcoming   *connect.Client[ListUpcomingRequest, ListUpcomingResponse]
	getSession     *connect.Client[GetSessionRequest, GetSessionResponse]
	join           *connect.Client[JoinRequest, JoinResponse]
	leave          *connect.Client[LeaveRequest, LeaveResponse]
	submitLocation *connect.Client[SubmitLocationRequest, SubmitLocationResponse]
	submitPhoto    *connect.Client[SubmitPhotoRequest, SubmitPhotoResponse]
	nearby         *connect.Client[NearbyRequest, NearbyResponse]
	subscribe      *connect.Client[SubscribeRequest, Notification]
}

// NewGameServiceClient constructs a client for the GameService service at
// baseURL, e.g. http://localhost:8080.
func NewGameServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *GameServiceClient {
	opts = clientOptions(opts)
	return &GameServiceClient{
		listUpcoming:   connect.NewClient[ListUpcomingRequest, ListUpcomingResponse](httpClient, baseURL+GameServiceListUpcomingProcedure, opts...),
		getSession:     connect.NewClient[GetSessionRequest, GetSessionResponse](httpClient, baseURL+GameServiceGetSessionProcedure, opts...),
		join:           connect.NewClient[JoinRequest, JoinResponse](httpClient, baseURL+GameServiceJoinProcedure, opts...),
		leave:          connect.NewClient[LeaveRequest, LeaveResponse](httpClient, baseURL+GameServiceLeaveProcedure, opts...),
		submitLocation: connect.NewClient[SubmitLocationRequest, SubmitLocationResponse](httpClient, baseURL+GameServiceSubmitLocationProcedure, opts...),
		submitPhoto:    connect.NewClient[SubmitPhotoRequest, SubmitPhotoResponse](httpClient, baseURL+GameServiceSubmitPhotoProcedure, opts...),
		nearby:         connect.NewClient[NearbyRequest, NearbyResponse](httpClient, baseURL+GameServiceNearbyProcedure, opts...),
		subscribe:      connect.NewClient[SubscribeRequest, Notification](httpClient, baseURL+GameServiceSubscribeProcedure, opts...),
	}
}

// ListUpcoming calls hideseek.v1.GameService.ListUpcoming.
func (c *GameServiceClient) ListUpcoming(ctx context.Context, req *connect.Request[ListUpcomingRequest]) (*connect.Response[ListUpcomingResponse], error) {
	return c.listUpcoming.CallUnary(ctx, req)
}

// GetSession calls hideseek.v1.GameService.GetSession.
func (c *GameServiceClient) GetSession(ctx context.Context, req *connect.Request[GetSessionRequest]) (*connect.Response[GetSessionResponse], error) {
	return c.getSession.CallUnary(ctx, req)
}

// Join calls hideseek.v1.GameService.Join.
func (c *GameServiceClient) Join(ctx context.Context, req *connect.Request[JoinRequest]) (*connect.Response[JoinResponse], error) {
	return c.join.CallUnary(ctx, req)
}

// Leave calls hideseek.v1.GameService.Leave.
func (c *GameServiceClient) Leave(ctx context.Context, req *connect.Request[LeaveRequest]) (*connect.Response[LeaveResponse], error) {
	return c.leave.CallUnary(ctx, req)
}

// SubmitLocation calls hideseek.v1.GameService.SubmitLocation.
func (c *GameServiceClient) SubmitLocation(ctx context.Context, req *connect.Request[SubmitLocationRequest]) (*connect.Response[SubmitLocationResponse], error) {
	return c.submitLocation.CallUnary(ctx, req)
}

// SubmitPhoto calls hideseek.v1.GameService.SubmitPhoto.
func (c *GameServiceClient) SubmitPhoto(ctx context.Context, req *connect.Request[SubmitPhotoRequest]) (*connect.Response[SubmitPhotoResponse], error) {
	return c.submitPhoto.CallUnary(ctx, req)
}

// Nearby calls hideseek.v1.GameService.Nearby.
func (c *GameServiceClient) Nearby(ctx context.Context, req *connect.Request[NearbyRequest]) (*connect.Response[NearbyResponse], error) {
	return c.nearby.CallUnary(ctx, req)
}

// Subscribe calls hideseek.v1.GameService.Subscribe.
func (c *GameServiceClient) Subscribe(ctx context.Context, req *connect.Request[SubscribeRequest]) (*connect.ServerStreamForClient[Notification], error) {
	return c.subscribe.CallServerStream(ctx, req)
}

// AdminServiceClient is a client for the AdminService service.
type AdminServiceClient struct {
	createSession    *connect.Client[CreateSessionRequest, CreateSessionResponse]
	transition       *connect.Client[TransitionRequest, TransitionResponse]
	listParticipants *connect.Client[ListParticipantsRequest, ListParticipantsResponse]
	assignRoles      *connect.Client[AssignRolesRequest, AssignRolesResponse]
	resetRoles       *connect.Client[ResetRolesRequest, ResetRolesResponse]
	approvePhoto     *connect.Client[DecidePhotoRequest, DecidePhotoResponse]
	rejectPhoto      *connect.Client[DecidePhotoRequest, DecidePhotoResponse]
	listPhotos       *connect.Client[ListPhotosRequest, ListPhotosResponse]
	getStats         *connect.Client[GetStatsRequest, GetStatsResponse]
	getSettings      *connect.Client[GetSettingsRequest, GetSettingsResponse]
	updateSettings   *connect.Client[UpdateSettingsRequest, UpdateSettingsResponse]
}

// NewAdminServiceClient constructs a client for the AdminService service at
// baseURL, e.g. http://localhost:8080.
func NewAdminServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AdminServiceClient {
	opts = clientOptions(opts)
	return &AdminServiceClient{
		createSession:    connect.NewClient[CreateSessionRequest, CreateSessionResponse](httpClient, baseURL+AdminServiceCreateSessionProcedure, opts...),
		transition:       connect.NewClient[TransitionRequest, TransitionResponse](httpClient, baseURL+AdminServiceTransitionProcedure, opts...),
		listParticipants: connect.NewClient[ListParticipantsRequest, ListParticipantsResponse](httpClient, baseURL+AdminServiceListParticipantsProcedure, opts...),
		assignRoles:      connect.NewClient[AssignRolesRequest, AssignRolesResponse](httpClient, baseURL+AdminServiceAssignRolesProcedure, opts...),
		resetRoles:       connect.NewClient[ResetRolesRequest, ResetRolesResponse](httpClient, baseURL+AdminServiceResetRolesProcedure, opts...),
		approvePhoto:     connect.NewClient[DecidePhotoRequest, DecidePhotoResponse](httpClient, baseURL+AdminServiceApprovePhotoProcedure, opts...),
		rejectPhoto:      connect.NewClient[DecidePhotoRequest, DecidePhotoResponse](httpClient, baseURL+AdminServiceRejectPhotoProcedure, opts...),
		listPhotos:       connect.NewClient[ListPhotosRequest, ListPhotosResponse](httpClient, baseURL+AdminServiceListPhotosProcedure, opts...),
		getStats:         connect.NewClient[GetStatsRequest, GetStatsResponse](httpClient, baseURL+AdminServiceGetStatsProcedure, opts...),
		getSettings:      connect.NewClient[GetSettingsRequest, GetSettingsResponse](httpClient, baseURL+AdminServiceGetSettingsProcedure, opts...),
		updateSettings:   connect.NewClient[UpdateSettingsRequest, UpdateSettingsResponse](httpClient, baseURL+AdminServiceUpdateSettingsProcedure, opts...),
	}
}

// CreateSession calls hideseek.v1.AdminService.CreateSession.
func (c *AdminServiceClient) CreateSession(ctx context.Context, req *connect.Request[CreateSessionRequest]) (*connect.Response[CreateSessionResponse], error) {
	return c.createSession.CallUnary(ctx, req)
}

// Transition calls hideseek.v1.AdminService.Transition.
func (c *AdminServiceClient) Transition(ctx context.Context, req *connect.Request[TransitionRequest]) (*connect.Response[TransitionResponse], error) {
	return c.transition.CallUnary(ctx, req)
}

// ListParticipants calls hideseek.v1.AdminService.ListParticipants.
func (c *AdminServiceClient) ListParticipants(ctx context.Context, req *connect.Request[ListParticipantsRequest]) (*connect.Response[ListParticipantsResponse], error) {
	return c.listParticipants.CallUnary(ctx, req)
}

// AssignRoles calls hideseek.v1.AdminService.AssignRoles.
func (c *AdminServiceClient) AssignRoles(ctx context.Context, req *connect.Request[AssignRolesRequest]) (*connect.Response[AssignRolesResponse], error) {
	return c.assignRoles.CallUnary(ctx, req)
}

// ResetRoles calls hideseek.v1.AdminService.ResetRoles.
func (c *AdminServiceClient) ResetRoles(ctx context.Context, req *connect.Request[ResetRolesRequest]) (*connect.Response[ResetRolesResponse], error) {
	return c.resetRoles.CallUnary(ctx, req)
}

// ApprovePhoto calls hideseek.v1.AdminService.ApprovePhoto.
func (c *AdminServiceClient) ApprovePhoto(ctx context.Context, req *connect.Request[DecidePhotoRequest]) (*connect.Response[DecidePhotoResponse], error) {
	return c.approvePhoto.CallUnary(ctx, req)
}

// RejectPhoto calls hideseek.v1.AdminService.RejectPhoto.
func (c *AdminServiceClient) RejectPhoto(ctx context.Context, req *connect.Request[DecidePhotoRequest]) (*connect.Response[DecidePhotoResponse], error) {
	return c.rejectPhoto.CallUnary(ctx, req)
}

// ListPhotos calls hideseek.v1.AdminService.ListPhotos.
func (c *AdminServiceClient) ListPhotos(ctx context.Context, req *connect.Request[ListPhotosRequest]) (*connect.Response[ListPhotosResponse], error) {
	return c.listPhotos.CallUnary(ctx, req)
}

// GetStats calls hideseek.v1.AdminService.GetStats.
func (c *AdminServiceClient) GetStats(ctx context.Context, req *connect.Request[GetStatsRequest]) (*connect.Response[GetStatsResponse], error) {
	return c.getStats.CallUnary(ctx, req)
}

// GetSettings calls hideseek.v1.AdminService.GetSettings.
func (c *AdminServiceClient) GetSettings(ctx context.Context, req *connect.Request[GetSettingsRequest]) (*connect.Response[GetSettingsResponse], error) {
	return c.getSettings.CallUnary(ctx, req)
}

// UpdateSettings calls hideseek.v1.AdminService.UpdateSettings.
func (c *AdminServiceClient) UpdateSettings(ctx context.Context, req *connect.Request[UpdateSettingsRequest]) (*connect.Response[UpdateSettingsResponse], error) {
	return c.updateSettings.CallUnary(ctx, req)
}
