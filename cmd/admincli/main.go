// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/hideseek/internal/api/connect"
	"github.com/osa030/hideseek/internal/api/hideseekv1"
)

var (
	app    = kingpin.New("hideseek-admincli", "hide-and-seek admin client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()
	actor  = app.Flag("actor", "Actor recorded on changes").Default("admin").String()

	// create command
	createCmd         = app.Command("create", "Create a session")
	createDistrict    = createCmd.Flag("district", "District").Required().String()
	createAt          = createCmd.Flag("at", `Start time ("tomorrow 7pm", "in 2 hours" or RFC3339)`).Required().String()
	createMax         = createCmd.Flag("max", "Max participants").Default("10").Int()
	createDrivers     = createCmd.Flag("drivers", "Max drivers").Default("2").Int()
	createDescription = createCmd.Flag("description", "Description").String()
	createZoneLat     = createCmd.Flag("zone-lat", "Session zone center latitude").Float64()
	createZoneLon     = createCmd.Flag("zone-lon", "Session zone center longitude").Float64()
	createZoneRadius  = createCmd.Flag("zone-radius", "Session zone radius in meters (0 = district zone)").Float64()

	// phase commands
	startCmd      = app.Command("start", "Start the hiding phase")
	startSession  = startCmd.Arg("session-id", "Session ID").Required().String()
	searchCmd     = app.Command("search", "Start the searching phase")
	searchSession = searchCmd.Arg("session-id", "Session ID").Required().String()
	finishCmd     = app.Command("finish", "Finish the game")
	finishSession = finishCmd.Arg("session-id", "Session ID").Required().String()
	cancelCmd     = app.Command("cancel", "Cancel the game")
	cancelSession = cancelCmd.Arg("session-id", "Session ID").Required().String()

	// participants commands
	participantsCmd     = app.Command("participants", "List participants").Alias("list")
	participantsSession = participantsCmd.Arg("session-id", "Session ID").Required().String()
	assignCmd           = app.Command("assign", "Assign roles")
	assignSession       = assignCmd.Arg("session-id", "Session ID").Required().String()
	resetCmd            = app.Command("reset-roles", "Clear assigned roles")
	resetSession        = resetCmd.Arg("session-id", "Session ID").Required().String()

	// photo commands
	photosCmd     = app.Command("photos", "List photos of a session")
	photosSession = photosCmd.Arg("session-id", "Session ID").Required().String()
	approveCmd    = app.Command("approve", "Approve a photo")
	approvePhoto  = approveCmd.Arg("photo-id", "Photo ID").Required().String()
	rejectCmd     = app.Command("reject", "Reject a photo")
	rejectPhoto   = rejectCmd.Arg("photo-id", "Photo ID").Required().String()

	// stats command
	statsCmd = app.Command("stats", "Show active session statistics")

	// settings command
	settingsCmd = app.Command("settings", "Show or update automation settings")
	settingsSet = settingsCmd.Flag("set", "Setting to update (key=value), repeatable").StringMap()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := hideseekv1.NewAdminServiceClient(
		http.DefaultClient,
		*server,
		connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(*token)),
	)

	ctx := context.Background()

	switch command {
	case createCmd.FullCommand():
		create(ctx, client)
	case startCmd.FullCommand():
		transition(ctx, client, *startSession, "hiding")
	case searchCmd.FullCommand():
		transition(ctx, client, *searchSession, "searching")
	case finishCmd.FullCommand():
		transition(ctx, client, *finishSession, "finished")
	case cancelCmd.FullCommand():
		transition(ctx, client, *cancelSession, "cancelled")
	case participantsCmd.FullCommand():
		listParticipants(ctx, client, *participantsSession)
	case assignCmd.FullCommand():
		assignRoles(ctx, client, *assignSession)
	case resetCmd.FullCommand():
		resetRoles(ctx, client, *resetSession)
	case photosCmd.FullCommand():
		listPhotos(ctx, client, *photosSession)
	case approveCmd.FullCommand():
		decide(ctx, client.ApprovePhoto, *approvePhoto)
	case rejectCmd.FullCommand():
		decide(ctx, client.RejectPhoto, *rejectPhoto)
	case statsCmd.FullCommand():
		stats(ctx, client)
	case settingsCmd.FullCommand():
		settings(ctx, client, *settingsSet)
	}
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}

func create(ctx context.Context, client *hideseekv1.AdminServiceClient) {
	at, err := parseStartTime(*createAt, time.Now())
	if err != nil {
		fail(err)
	}

	req := &hideseekv1.CreateSessionRequest{
		District:        *createDistrict,
		ScheduledAt:     at,
		MaxParticipants: *createMax,
		MaxDrivers:      *createDrivers,
		CreatorID:       *actor,
		Description:     *createDescription,
	}
	if *createZoneRadius > 0 {
		req.Zone = &hideseekv1.Zone{
			Lat:          *createZoneLat,
			Lon:          *createZoneLon,
			RadiusMeters: *createZoneRadius,
		}
	}

	resp, err := client.CreateSession(ctx, connect.NewRequest(req))
	if err != nil {
		fail(err)
	}
	fmt.Println("Session created")
	printSession(resp.Msg.Session)
}

func transition(ctx context.Context, client *hideseekv1.AdminServiceClient, sessionID, target string) {
	resp, err := client.Transition(ctx, connect.NewRequest(&hideseekv1.TransitionRequest{
		SessionID: sessionID,
		Target:    target,
		Actor:     *actor,
	}))
	if err != nil {
		fail(err)
	}
	if resp.Msg.Message != "" {
		fmt.Println(resp.Msg.Message)
	}
	printSession(resp.Msg.Session)
}

func listParticipants(ctx context.Context, client *hideseekv1.AdminServiceClient, sessionID string) {
	resp, err := client.ListParticipants(ctx, connect.NewRequest(&hideseekv1.ListParticipantsRequest{SessionID: sessionID}))
	if err != nil {
		fail(err)
	}
	printParticipants(resp.Msg.Participants)
}

func assignRoles(ctx context.Context, client *hideseekv1.AdminServiceClient, sessionID string) {
	resp, err := client.AssignRoles(ctx, connect.NewRequest(&hideseekv1.AssignRolesRequest{SessionID: sessionID, Actor: *actor}))
	if err != nil {
		fail(err)
	}
	fmt.Println("Roles assigned")
	printParticipants(resp.Msg.Participants)
}

func resetRoles(ctx context.Context, client *hideseekv1.AdminServiceClient, sessionID string) {
	resp, err := client.ResetRoles(ctx, connect.NewRequest(&hideseekv1.ResetRolesRequest{SessionID: sessionID, Actor: *actor}))
	if err != nil {
		fail(err)
	}
	fmt.Printf("Roles cleared: %d\n", resp.Msg.Cleared)
}

func listPhotos(ctx context.Context, client *hideseekv1.AdminServiceClient, sessionID string) {
	resp, err := client.ListPhotos(ctx, connect.NewRequest(&hideseekv1.ListPhotosRequest{SessionID: sessionID}))
	if err != nil {
		fail(err)
	}
	if len(resp.Msg.Photos) == 0 {
		fmt.Println("No photos")
		return
	}
	fmt.Printf("%-36s  %-16s  %-9s  %-6s  %s\n", "PHOTO", "USER", "STATUS", "INSIDE", "FILE")
	for _, p := range resp.Msg.Photos {
		fmt.Printf("%-36s  %-16s  %-9s  %-6v  %s\n", p.ID, p.UserID, p.Status, p.InsideZone, p.FileRef)
	}
}

type decideFunc func(context.Context, *connect.Request[hideseekv1.DecidePhotoRequest]) (*connect.Response[hideseekv1.DecidePhotoResponse], error)

func decide(ctx context.Context, call decideFunc, photoID string) {
	resp, err := call(ctx, connect.NewRequest(&hideseekv1.DecidePhotoRequest{PhotoID: photoID, Actor: *actor}))
	if err != nil {
		fail(err)
	}
	fmt.Printf("Photo %s: %s\n", resp.Msg.Photo.ID, resp.Msg.Photo.Status)
}

func stats(ctx context.Context, client *hideseekv1.AdminServiceClient) {
	resp, err := client.GetStats(ctx, connect.NewRequest(&hideseekv1.GetStatsRequest{}))
	if err != nil {
		fail(err)
	}
	s := resp.Msg.Stats
	fmt.Println("\n=== ACTIVE SESSIONS ===")
	fmt.Printf("Recruiting: %d\n", s.Recruiting)
	fmt.Printf("Hiding: %d\n", s.Hiding)
	fmt.Printf("Searching: %d\n", s.Searching)
	fmt.Printf("Participants: %d (drivers %d, seekers %d, observers %d)\n", s.Participants, s.Drivers, s.Seekers, s.Observers)
	fmt.Printf("Pending triggers: %d\n", s.PendingTriggers)
	fmt.Println()
}

func settings(ctx context.Context, client *hideseekv1.AdminServiceClient, set map[string]string) {
	var s *hideseekv1.Settings
	if len(set) == 0 {
		resp, err := client.GetSettings(ctx, connect.NewRequest(&hideseekv1.GetSettingsRequest{}))
		if err != nil {
			fail(err)
		}
		s = resp.Msg.Settings
	} else {
		patch := make(map[string]any, len(set))
		for k, v := range set {
			patch[k] = settingValue(v)
		}
		resp, err := client.UpdateSettings(ctx, connect.NewRequest(&hideseekv1.UpdateSettingsRequest{Patch: patch}))
		if err != nil {
			fail(err)
		}
		fmt.Println("Settings updated")
		s = resp.Msg.Settings
	}

	fmt.Printf("autoStartGame:          %v\n", s.AutoStartGame)
	fmt.Printf("autoStartHiding:        %v\n", s.AutoStartHiding)
	fmt.Printf("autoStartSearching:     %v\n", s.AutoStartSearching)
	fmt.Printf("autoEndGame:            %v\n", s.AutoEndGame)
	fmt.Printf("autoAssignRoles:        %v\n", s.AutoAssignRoles)
	fmt.Printf("manualControlMode:      %v\n", s.ManualControlMode)
	fmt.Printf("hidingDuration:         %s\n", s.HidingDuration)
	fmt.Printf("searchingDuration:      %s\n", s.SearchingDuration)
	fmt.Printf("minParticipantsToStart: %d\n", s.MinParticipantsToStart)
}

// settingValue converts a command line value to the JSON type the server expects.
func settingValue(v string) any {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return v
}

func printSession(s *hideseekv1.Session) {
	fmt.Printf("  Session ID: %s\n", s.ID)
	fmt.Printf("  District: %s\n", s.District)
	fmt.Printf("  Status: %s\n", s.Status)
	fmt.Printf("  Scheduled At: %s\n", s.ScheduledAt.Local().Format(time.RFC1123))
	fmt.Printf("  Capacity: %d (drivers %d)\n", s.MaxParticipants, s.MaxDrivers)
	if s.Zone != nil {
		fmt.Printf("  Zone: %s (%.5f, %.5f) r=%.0fm\n", s.Zone.ID, s.Zone.Lat, s.Zone.Lon, s.Zone.RadiusMeters)
	}
	if s.HidingAt != nil {
		fmt.Printf("  Hiding At: %s\n", s.HidingAt.Local().Format(time.RFC1123))
	}
	if s.SearchingAt != nil {
		fmt.Printf("  Searching At: %s\n", s.SearchingAt.Local().Format(time.RFC1123))
	}
	if s.EndedAt != nil {
		fmt.Printf("  Ended At: %s\n", s.EndedAt.Local().Format(time.RFC1123))
	}
	fmt.Printf("  Pending Triggers: %d\n", s.PendingTriggers)
}

func printParticipants(ps []*hideseekv1.Participant) {
	if len(ps) == 0 {
		fmt.Println("No participants")
		return
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].JoinedAt.Before(ps[j].JoinedAt) })
	fmt.Printf("%-24s  %-9s  %-9s  %s\n", "USER", "ROLE", "PREFERRED", "JOINED")
	for _, p := range ps {
		fmt.Printf("%-24s  %-9s  %-9s  %s\n", p.UserID, p.Role, p.PreferredRole, p.JoinedAt.Local().Format(time.Kitchen))
	}
	fmt.Printf("Total: %d\n", len(ps))
}
