// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"golang.org/x/net/http2"

	apiconnect "github.com/osa030/tunebox/internal/api/connect"
	"github.com/osa030/tunebox/internal/app/jukebox"
	"github.com/osa030/tunebox/internal/app/notification"
)

var (
	app    = kingpin.New("tunebox-admincli", "tunebox admin client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	// status command
	statusCmd   = app.Command("status", "Show playback status")
	statusGuild = statusCmd.Flag("guild", "Guild ID (default: all guilds)").String()

	// queue command
	queueCmd   = app.Command("queue", "List a guild's queue")
	queueGuild = queueCmd.Arg("guild-id", "Guild ID").Required().String()

	// control commands
	skipCmd      = app.Command("skip", "Skip the current track")
	skipGuild    = skipCmd.Arg("guild-id", "Guild ID").Required().String()
	pauseCmd     = app.Command("pause", "Pause playback")
	pauseGuild   = pauseCmd.Arg("guild-id", "Guild ID").Required().String()
	resumeCmd    = app.Command("resume", "Resume playback")
	resumeGuild  = resumeCmd.Arg("guild-id", "Guild ID").Required().String()
	stopCmd      = app.Command("stop", "Stop playback and clear the queue")
	stopGuild    = stopCmd.Arg("guild-id", "Guild ID").Required().String()
	shuffleCmd   = app.Command("shuffle", "Shuffle the queue")
	shuffleGuild = shuffleCmd.Arg("guild-id", "Guild ID").Required().String()
	loopCmd      = app.Command("loop", "Toggle queue looping")
	loopGuild    = loopCmd.Arg("guild-id", "Guild ID").Required().String()

	// watch command
	watchCmd   = app.Command("watch", "Stream playback notifications")
	watchGuild = watchCmd.Flag("guild", "Guild ID (default: all guilds)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := apiconnect.NewAdminClient(newHTTPClient(*server), *server, *token)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case statusCmd.FullCommand():
		err = status(ctx, client, *statusGuild)
	case queueCmd.FullCommand():
		err = listQueue(ctx, client, *queueGuild)
	case skipCmd.FullCommand():
		err = action(client.Skip(ctx, *skipGuild))
	case pauseCmd.FullCommand():
		err = action(client.Pause(ctx, *pauseGuild))
	case resumeCmd.FullCommand():
		err = action(client.Resume(ctx, *resumeGuild))
	case stopCmd.FullCommand():
		err = action(client.Stop(ctx, *stopGuild))
	case shuffleCmd.FullCommand():
		err = action(client.Shuffle(ctx, *shuffleGuild))
	case loopCmd.FullCommand():
		err = action(client.ToggleLoop(ctx, *loopGuild))
	case watchCmd.FullCommand():
		err = watch(ctx, client, *watchGuild)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// newHTTPClient returns a client speaking HTTP/2 cleartext for http://
// addresses, which server streaming requires.
func newHTTPClient(addr string) *http.Client {
	if !strings.HasPrefix(addr, "http://") {
		return http.DefaultClient
	}
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

func status(ctx context.Context, client *apiconnect.AdminClient, guildID string) error {
	resp, err := client.GetStatus(ctx, guildID)
	if err != nil {
		return err
	}

	fmt.Println("\n=== CURRENT STATUS ===")
	fmt.Printf("Active Players: %d\n", resp.ActivePlayers)
	fmt.Printf("Queued Tracks: %d\n", resp.QueuedTracks)
	fmt.Printf("Subscribers: %d\n", resp.Subscribers)

	for _, g := range resp.Guilds {
		printGuild(g)
	}
	return nil
}

func printGuild(g jukebox.GuildStatus) {
	fmt.Printf("\nGuild %s:\n", g.GuildID)
	fmt.Printf("  State: %s\n", g.State)
	if g.ChannelID != "" {
		fmt.Printf("  Voice Channel: %s\n", g.ChannelID)
	}
	fmt.Printf("  Queue Length: %d\n", g.QueueLength)
	fmt.Printf("  Loop: %v\n", g.Loop)
	if g.Current != nil {
		fmt.Printf("  Now Playing: %s\n", g.Current.Track.DisplayTitle())
		if g.Current.Track.WebpageURL != "" {
			fmt.Printf("  URL: %s\n", g.Current.Track.WebpageURL)
		}
		fmt.Printf("  Requested by: %s\n", g.Current.Requester.Name)
	}
}

func listQueue(ctx context.Context, client *apiconnect.AdminClient, guildID string) error {
	resp, err := client.ListQueue(ctx, guildID)
	if err != nil {
		return err
	}

	fmt.Printf("Queue for %s (%d, loop: %v):\n", resp.GuildID, len(resp.Tracks), resp.Loop)
	for _, e := range resp.Tracks {
		line := fmt.Sprintf("  %d. %s", e.Position, e.Title)
		if e.DurationSec > 0 {
			line += fmt.Sprintf(" [%d:%02d]", e.DurationSec/60, e.DurationSec%60)
		}
		if e.Requester != "" {
			line += " (" + e.Requester + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func action(resp *apiconnect.ActionResponse, err error) error {
	if err != nil {
		return err
	}
	if !resp.Success {
		fmt.Printf("Failed: %s\n", resp.Message)
		os.Exit(1)
	}
	fmt.Println(resp.Message)
	return nil
}

func watch(ctx context.Context, client *apiconnect.AdminClient, guildID string) error {
	fmt.Println("Watching notifications (Ctrl+C to stop)...")
	return client.WatchNotifications(ctx, guildID, func(n *notification.Notification) error {
		line := fmt.Sprintf("[%s] #%d %s guild=%s", n.Time.Format("15:04:05"), n.SequenceNo, n.Type, n.GuildID)
		if n.Title != "" {
			line += fmt.Sprintf(" title=%q", n.Title)
		}
		if n.Requester != "" {
			line += " requester=" + n.Requester
		}
		if n.State != "" {
			line += " state=" + n.State
		}
		if n.Error != "" {
			line += " error=" + n.Error
		}
		fmt.Println(line)
		return nil
	})
}
