package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/osa030/tunebox/internal/app/notification"
)

// AdminClient is a client for the admin service.
type AdminClient struct {
	token string

	getStatus  *connect.Client[GetStatusRequest, GetStatusResponse]
	listQueue  *connect.Client[GuildRequest, ListQueueResponse]
	skip       *connect.Client[GuildRequest, ActionResponse]
	pause      *connect.Client[GuildRequest, ActionResponse]
	resume     *connect.Client[GuildRequest, ActionResponse]
	stop       *connect.Client[GuildRequest, ActionResponse]
	shuffle    *connect.Client[GuildRequest, ActionResponse]
	toggleLoop *connect.Client[GuildRequest, ActionResponse]
	watch      *connect.Client[WatchNotificationsRequest, notification.Notification]
}

// NewAdminClient creates a client for the admin service at baseURL.
func NewAdminClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *AdminClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSONCodec()}, opts...)

	return &AdminClient{
		token:      token,
		getStatus:  connect.NewClient[GetStatusRequest, GetStatusResponse](httpClient, baseURL+AdminGetStatusProcedure, opts...),
		listQueue:  connect.NewClient[GuildRequest, ListQueueResponse](httpClient, baseURL+AdminListQueueProcedure, opts...),
		skip:       connect.NewClient[GuildRequest, ActionResponse](httpClient, baseURL+AdminSkipProcedure, opts...),
		pause:      connect.NewClient[GuildRequest, ActionResponse](httpClient, baseURL+AdminPauseProcedure, opts...),
		resume:     connect.NewClient[GuildRequest, ActionResponse](httpClient, baseURL+AdminResumeProcedure, opts...),
		stop:       connect.NewClient[GuildRequest, ActionResponse](httpClient, baseURL+AdminStopProcedure, opts...),
		shuffle:    connect.NewClient[GuildRequest, ActionResponse](httpClient, baseURL+AdminShuffleProcedure, opts...),
		toggleLoop: connect.NewClient[GuildRequest, ActionResponse](httpClient, baseURL+AdminToggleLoopProcedure, opts...),
		watch: connect.NewClient[WatchNotificationsRequest, notification.Notification](
			httpClient, baseURL+AdminWatchNotificationsProcedure, opts...),
	}
}

func newRequest[T any](msg *T, token string) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set(AdminTokenHeader, token)
	return req
}

// GetStatus returns the status of guildID, or of every guild when empty.
func (c *AdminClient) GetStatus(ctx context.Context, guildID string) (*GetStatusResponse, error) {
	resp, err := c.getStatus.CallUnary(ctx, newRequest(&GetStatusRequest{GuildID: guildID}, c.token))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// ListQueue lists a guild's upcoming tracks.
func (c *AdminClient) ListQueue(ctx context.Context, guildID string) (*ListQueueResponse, error) {
	resp, err := c.listQueue.CallUnary(ctx, newRequest(&GuildRequest{GuildID: guildID}, c.token))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Skip skips the current track.
func (c *AdminClient) Skip(ctx context.Context, guildID string) (*ActionResponse, error) {
	return c.action(ctx, c.skip, guildID)
}

// Pause pauses playback.
func (c *AdminClient) Pause(ctx context.Context, guildID string) (*ActionResponse, error) {
	return c.action(ctx, c.pause, guildID)
}

// Resume resumes playback.
func (c *AdminClient) Resume(ctx context.Context, guildID string) (*ActionResponse, error) {
	return c.action(ctx, c.resume, guildID)
}

// Stop clears the guild and leaves voice.
func (c *AdminClient) Stop(ctx context.Context, guildID string) (*ActionResponse, error) {
	return c.action(ctx, c.stop, guildID)
}

// Shuffle shuffles the queue.
func (c *AdminClient) Shuffle(ctx context.Context, guildID string) (*ActionResponse, error) {
	return c.action(ctx, c.shuffle, guildID)
}

// ToggleLoop flips the loop flag.
func (c *AdminClient) ToggleLoop(ctx context.Context, guildID string) (*ActionResponse, error) {
	return c.action(ctx, c.toggleLoop, guildID)
}

func (c *AdminClient) action(
	ctx context.Context,
	client *connect.Client[GuildRequest, ActionResponse],
	guildID string,
) (*ActionResponse, error) {
	resp, err := client.CallUnary(ctx, newRequest(&GuildRequest{GuildID: guildID}, c.token))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// WatchNotifications streams notifications to fn until ctx is done, the
// server ends the stream, or fn returns an error.
func (c *AdminClient) WatchNotifications(
	ctx context.Context,
	guildID string,
	fn func(*notification.Notification) error,
) error {
	stream, err := c.watch.CallServerStream(ctx, newRequest(&WatchNotificationsRequest{GuildID: guildID}, c.token))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if err := fn(stream.Msg()); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
