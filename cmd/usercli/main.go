// Package main provides the player CLI entry point for testing.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/hideseek/internal/api/hideseekv1"
)

var (
	app    = kingpin.New("hideseek-usercli", "hide-and-seek player client for testing")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	user   = app.Flag("user", "User ID (or set HIDESEEK_USER env)").Envar("HIDESEEK_USER").String()

	// upcoming command
	upcomingCmd      = app.Command("upcoming", "List upcoming sessions")
	upcomingDistrict = upcomingCmd.Flag("district", "Only this district").String()

	// show command
	showCmd     = app.Command("show", "Show a session and its participants")
	showSession = showCmd.Arg("session-id", "Session ID").Required().String()

	// join command
	joinCmd     = app.Command("join", "Join a session")
	joinSession = joinCmd.Arg("session-id", "Session ID").Required().String()
	joinRole    = joinCmd.Flag("role", "Preferred role").Default("none").Enum("none", "driver", "seeker", "observer")

	// leave command
	leaveCmd     = app.Command("leave", "Leave a session")
	leaveSession = leaveCmd.Arg("session-id", "Session ID").Required().String()

	// location command
	locationCmd     = app.Command("location", "Report your location")
	locationSession = locationCmd.Arg("session-id", "Session ID").Required().String()
	locationLat     = locationCmd.Arg("lat", "Latitude").Required().Float64()
	locationLon     = locationCmd.Arg("lon", "Longitude").Required().Float64()

	// photo command
	photoCmd     = app.Command("photo", "Submit a photo")
	photoSession = photoCmd.Arg("session-id", "Session ID").Required().String()
	photoFile    = photoCmd.Arg("file-ref", "Uploaded file reference").Required().String()
	photoLat     = photoCmd.Arg("lat", "Latitude").Required().Float64()
	photoLon     = photoCmd.Arg("lon", "Longitude").Required().Float64()

	// nearby command
	nearbyCmd     = app.Command("nearby", "List nearby players")
	nearbySession = nearbyCmd.Arg("session-id", "Session ID").Required().String()
	nearbyRadius  = nearbyCmd.Flag("radius", "Radius in meters (0 = server default)").Float64()

	// subscribe command
	subscribeCmd = app.Command("subscribe", "Subscribe to notifications")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := hideseekv1.NewGameServiceClient(
		http.DefaultClient,
		*server,
	)

	ctx := context.Background()

	switch command {
	case upcomingCmd.FullCommand():
		upcoming(ctx, client, *upcomingDistrict)
	case showCmd.FullCommand():
		show(ctx, client, *showSession)
	case joinCmd.FullCommand():
		join(ctx, client, *joinSession, *joinRole)
	case leaveCmd.FullCommand():
		leave(ctx, client, *leaveSession)
	case locationCmd.FullCommand():
		location(ctx, client, *locationSession, *locationLat, *locationLon)
	case photoCmd.FullCommand():
		photo(ctx, client, *photoSession, *photoFile, *photoLat, *photoLon)
	case nearbyCmd.FullCommand():
		nearby(ctx, client, *nearbySession, *nearbyRadius)
	case subscribeCmd.FullCommand():
		subscribe(ctx, client)
	}
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}

func userID() string {
	if *user == "" {
		fmt.Println("Error: user ID is required (use --user or HIDESEEK_USER env)")
		os.Exit(1)
	}
	return *user
}

func upcoming(ctx context.Context, client *hideseekv1.GameServiceClient, district string) {
	resp, err := client.ListUpcoming(ctx, connect.NewRequest(&hideseekv1.ListUpcomingRequest{District: district}))
	if err != nil {
		fail(err)
	}
	if len(resp.Msg.Sessions) == 0 {
		fmt.Println("No upcoming sessions")
		return
	}
	for _, s := range resp.Msg.Sessions {
		fmt.Printf("%s  %-12s  %s  max %d  %s\n",
			s.ID, s.District, s.ScheduledAt.Local().Format("Mon Jan 2 15:04"), s.MaxParticipants, s.Description)
	}
}

func show(ctx context.Context, client *hideseekv1.GameServiceClient, sessionID string) {
	resp, err := client.GetSession(ctx, connect.NewRequest(&hideseekv1.GetSessionRequest{SessionID: sessionID}))
	if err != nil {
		fail(err)
	}
	s := resp.Msg.Session
	fmt.Printf("Session %s (%s)\n", s.ID, s.District)
	fmt.Printf("  Status: %s\n", s.Status)
	fmt.Printf("  Scheduled At: %s\n", s.ScheduledAt.Local().Format(time.RFC1123))
	if s.Description != "" {
		fmt.Printf("  Description: %s\n", s.Description)
	}

	ps := resp.Msg.Participants
	sort.Slice(ps, func(i, j int) bool { return ps[i].JoinedAt.Before(ps[j].JoinedAt) })
	fmt.Printf("  Participants (%d/%d):\n", len(ps), s.MaxParticipants)
	for _, p := range ps {
		fmt.Printf("    %-24s %s\n", p.UserID, p.Role)
	}
}

func join(ctx context.Context, client *hideseekv1.GameServiceClient, sessionID, role string) {
	resp, err := client.Join(ctx, connect.NewRequest(&hideseekv1.JoinRequest{
		SessionID:     sessionID,
		UserID:        userID(),
		PreferredRole: role,
	}))
	if err != nil {
		fail(err)
	}
	fmt.Printf("Joined! Preferred role: %s\n", resp.Msg.Participant.PreferredRole)
}

func leave(ctx context.Context, client *hideseekv1.GameServiceClient, sessionID string) {
	if _, err := client.Leave(ctx, connect.NewRequest(&hideseekv1.LeaveRequest{SessionID: sessionID, UserID: userID()})); err != nil {
		fail(err)
	}
	fmt.Println("Left the session")
}

func location(ctx context.Context, client *hideseekv1.GameServiceClient, sessionID string, lat, lon float64) {
	resp, err := client.SubmitLocation(ctx, connect.NewRequest(&hideseekv1.SubmitLocationRequest{
		SessionID:  sessionID,
		UserID:     userID(),
		Lat:        lat,
		Lon:        lon,
		ObservedAt: time.Now(),
	}))
	if err != nil {
		fail(err)
	}
	fmt.Printf("Location #%d recorded (inside zone: %v)\n", resp.Msg.Sequence, resp.Msg.InsideZone)
	if resp.Msg.Message != "" {
		fmt.Printf("Warning [%v]: %s\n", resp.Msg.Flags, resp.Msg.Message)
	}
}

func photo(ctx context.Context, client *hideseekv1.GameServiceClient, sessionID, fileRef string, lat, lon float64) {
	resp, err := client.SubmitPhoto(ctx, connect.NewRequest(&hideseekv1.SubmitPhotoRequest{
		SessionID: sessionID,
		UserID:    userID(),
		FileRef:   fileRef,
		Lat:       lat,
		Lon:       lon,
	}))
	if err != nil {
		fail(err)
	}
	fmt.Printf("Photo %s submitted: %s (inside zone: %v)\n", resp.Msg.Photo.ID, resp.Msg.Photo.Status, resp.Msg.Photo.InsideZone)
	if resp.Msg.Message != "" {
		fmt.Println(resp.Msg.Message)
	}
}

func nearby(ctx context.Context, client *hideseekv1.GameServiceClient, sessionID string, radius float64) {
	resp, err := client.Nearby(ctx, connect.NewRequest(&hideseekv1.NearbyRequest{
		SessionID:    sessionID,
		UserID:       userID(),
		RadiusMeters: radius,
	}))
	if err != nil {
		fail(err)
	}
	if len(resp.Msg.Neighbors) == 0 {
		fmt.Println("Nobody nearby")
		return
	}
	for _, n := range resp.Msg.Neighbors {
		fmt.Printf("%-24s %6.0fm  (%.5f, %.5f)\n", n.UserID, n.DistanceMeters, n.Lat, n.Lon)
	}
}

func subscribe(ctx context.Context, client *hideseekv1.GameServiceClient) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream, err := client.Subscribe(ctx, connect.NewRequest(&hideseekv1.SubscribeRequest{UserID: userID()}))
	if err != nil {
		fail(err)
	}
	defer stream.Close()

	fmt.Println("Subscribed to notifications. Press Ctrl+C to exit.")

	for stream.Receive() {
		printNotification(stream.Msg())
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		fmt.Printf("Stream error: %v\n", err)
	}
}

func printNotification(n *hideseekv1.Notification) {
	fmt.Printf("\n[Sequence: %d] %s", n.SequenceNo, n.CreatedAt.Local().Format(time.TimeOnly))
	if n.SessionID != "" {
		fmt.Printf(" session=%s", n.SessionID)
	}
	fmt.Printf("\n=== %s ===\n%s\n", n.Kind, n.Text)

	keys := make([]string, 0, len(n.Data))
	for k := range n.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %s\n", k, n.Data[k])
	}
}
