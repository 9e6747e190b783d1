// Package connect provides the Connect RPC admin service.
package connect

import (
	"context"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/jukebox"
	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/domain/track"
)

// AdminServiceName is the fully-qualified name of the admin service.
const AdminServiceName = "tunebox.admin.v1.AdminService"

// Procedure paths of the admin service.
const (
	AdminGetStatusProcedure          = "/" + AdminServiceName + "/GetStatus"
	AdminListQueueProcedure          = "/" + AdminServiceName + "/ListQueue"
	AdminSkipProcedure               = "/" + AdminServiceName + "/Skip"
	AdminPauseProcedure              = "/" + AdminServiceName + "/Pause"
	AdminResumeProcedure             = "/" + AdminServiceName + "/Resume"
	AdminStopProcedure               = "/" + AdminServiceName + "/Stop"
	AdminShuffleProcedure            = "/" + AdminServiceName + "/Shuffle"
	AdminToggleLoopProcedure         = "/" + AdminServiceName + "/ToggleLoop"
	AdminWatchNotificationsProcedure = "/" + AdminServiceName + "/WatchNotifications"
)

// Jukebox is the service the admin API controls.
type Jukebox interface {
	Status(guildID string) jukebox.GuildStatus
	Guilds() []jukebox.GuildStatus
	ActivePlayers() int
	QueuedTracks() int
	Queue(guildID string) []track.QueuedTrack
	Skip(ctx context.Context, guildID string) error
	Pause(ctx context.Context, guildID string) error
	Resume(ctx context.Context, guildID string) error
	Stop(ctx context.Context, guildID string) (bool, error)
	Shuffle(guildID string) bool
	ToggleLoop(guildID string) bool
	Notifications() *notification.Manager
}

// AdminService implements the AdminService RPC.
type AdminService struct {
	jukebox Jukebox
}

// NewAdminService creates a new AdminService.
func NewAdminService(jb Jukebox) *AdminService {
	return &AdminService{jukebox: jb}
}

// NewAdminServiceHandler builds an HTTP handler serving every admin
// procedure. It returns the path to mount the handler on.
func NewAdminServiceHandler(svc *AdminService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSONCodec()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(AdminGetStatusProcedure, connect.NewUnaryHandler(AdminGetStatusProcedure, svc.GetStatus, opts...))
	mux.Handle(AdminListQueueProcedure, connect.NewUnaryHandler(AdminListQueueProcedure, svc.ListQueue, opts...))
	mux.Handle(AdminSkipProcedure, connect.NewUnaryHandler(AdminSkipProcedure, svc.Skip, opts...))
	mux.Handle(AdminPauseProcedure, connect.NewUnaryHandler(AdminPauseProcedure, svc.Pause, opts...))
	mux.Handle(AdminResumeProcedure, connect.NewUnaryHandler(AdminResumeProcedure, svc.Resume, opts...))
	mux.Handle(AdminStopProcedure, connect.NewUnaryHandler(AdminStopProcedure, svc.Stop, opts...))
	mux.Handle(AdminShuffleProcedure, connect.NewUnaryHandler(AdminShuffleProcedure, svc.Shuffle, opts...))
	mux.Handle(AdminToggleLoopProcedure, connect.NewUnaryHandler(AdminToggleLoopProcedure, svc.ToggleLoop, opts...))
	mux.Handle(AdminWatchNotificationsProcedure,
		connect.NewServerStreamHandler(AdminWatchNotificationsProcedure, svc.WatchNotifications, opts...))

	return "/" + AdminServiceName + "/", mux
}

// GetStatus returns the status of one guild or of every guild.
func (s *AdminService) GetStatus(
	ctx context.Context,
	req *connect.Request[GetStatusRequest],
) (*connect.Response[GetStatusResponse], error) {
	var guilds []jukebox.GuildStatus
	if req.Msg.GuildID != "" {
		guilds = []jukebox.GuildStatus{s.jukebox.Status(req.Msg.GuildID)}
	} else {
		guilds = s.jukebox.Guilds()
	}

	return connect.NewResponse(&GetStatusResponse{
		Guilds:        guilds,
		ActivePlayers: s.jukebox.ActivePlayers(),
		QueuedTracks:  s.jukebox.QueuedTracks(),
		Subscribers:   s.jukebox.Notifications().SubscriberCount(),
	}), nil
}

// ListQueue lists a guild's upcoming tracks.
func (s *AdminService) ListQueue(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[ListQueueResponse], error) {
	if err := requireGuild(req.Msg); err != nil {
		return nil, err
	}

	queued := s.jukebox.Queue(req.Msg.GuildID)
	entries := make([]QueueEntry, len(queued))
	for i, qt := range queued {
		entries[i] = QueueEntry{
			Position:    i + 1,
			Title:       qt.Track.DisplayTitle(),
			URL:         qt.Track.WebpageURL,
			DurationSec: int(qt.Track.Duration.Seconds()),
			Requester:   qt.Requester.Name,
		}
	}

	return connect.NewResponse(&ListQueueResponse{
		GuildID: req.Msg.GuildID,
		Loop:    s.jukebox.Status(req.Msg.GuildID).Loop,
		Tracks:  entries,
	}), nil
}

// Skip skips the current track.
func (s *AdminService) Skip(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[ActionResponse], error) {
	if err := requireGuild(req.Msg); err != nil {
		return nil, err
	}
	return actionResponse(s.jukebox.Skip(ctx, req.Msg.GuildID), "Track skipped")
}

// Pause pauses playback.
func (s *AdminService) Pause(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[ActionResponse], error) {
	if err := requireGuild(req.Msg); err != nil {
		return nil, err
	}
	return actionResponse(s.jukebox.Pause(ctx, req.Msg.GuildID), "Playback paused")
}

// Resume resumes playback.
func (s *AdminService) Resume(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[ActionResponse], error) {
	if err := requireGuild(req.Msg); err != nil {
		return nil, err
	}
	return actionResponse(s.jukebox.Resume(ctx, req.Msg.GuildID), "Playback resumed")
}

// Stop clears the guild and leaves voice.
func (s *AdminService) Stop(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[ActionResponse], error) {
	if err := requireGuild(req.Msg); err != nil {
		return nil, err
	}
	wasConnected, err := s.jukebox.Stop(ctx, req.Msg.GuildID)
	if err != nil {
		return actionResponse(err, "")
	}
	msg := "Playback stopped"
	if !wasConnected {
		msg = "Queue cleared, not connected to voice"
	}
	return actionResponse(nil, msg)
}

// Shuffle shuffles the queue.
func (s *AdminService) Shuffle(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[ActionResponse], error) {
	if err := requireGuild(req.Msg); err != nil {
		return nil, err
	}
	if !s.jukebox.Shuffle(req.Msg.GuildID) {
		return connect.NewResponse(&ActionResponse{
			Success: false,
			Message: "Not enough tracks to shuffle",
		}), nil
	}
	return actionResponse(nil, "Queue shuffled")
}

// ToggleLoop flips the loop flag.
func (s *AdminService) ToggleLoop(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[ActionResponse], error) {
	if err := requireGuild(req.Msg); err != nil {
		return nil, err
	}
	if s.jukebox.ToggleLoop(req.Msg.GuildID) {
		return actionResponse(nil, "Loop enabled")
	}
	return actionResponse(nil, "Loop disabled")
}

// WatchNotifications streams notifications until the client disconnects.
func (s *AdminService) WatchNotifications(
	ctx context.Context,
	req *connect.Request[WatchNotificationsRequest],
	stream *connect.ServerStream[notification.Notification],
) error {
	ns := &notificationStream{stream: stream}
	notifications := s.jukebox.Notifications()
	id := notifications.Subscribe(req.Msg.GuildID, ns)
	zlog.Info().Msgf("admin: watcher subscribed: subscription_id=%s guild_id=%s", id, req.Msg.GuildID)

	defer func() {
		notifications.Unsubscribe(id)
		ns.close()
		zlog.Info().Msgf("admin: watcher unsubscribed: subscription_id=%s", id)
	}()

	<-ctx.Done()
	return nil
}

// notificationStream serializes sends to a server stream and stops
// forwarding once the handler has returned.
type notificationStream struct {
	mu     sync.Mutex
	stream *connect.ServerStream[notification.Notification]
	closed bool
}

func (n *notificationStream) Send(msg *notification.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return errors.New("stream closed")
	}
	return n.stream.Send(msg)
}

func (n *notificationStream) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
}

func requireGuild(req *GuildRequest) error {
	if req.GuildID == "" {
		return connect.NewError(connect.CodeInvalidArgument, errors.New("guild_id is required"))
	}
	return nil
}

func actionResponse(err error, okMessage string) (*connect.Response[ActionResponse], error) {
	if err != nil {
		if errors.Is(err, playback.ErrClosed) {
			return nil, connect.NewError(connect.CodeUnavailable, err)
		}
		return connect.NewResponse(&ActionResponse{
			Success: false,
			Message: err.Error(),
		}), nil
	}
	return connect.NewResponse(&ActionResponse{
		Success: true,
		Message: okMessage,
	}), nil
}
