// Package notifications provides real-time delivery of feed events to
// websocket connections grouped in rooms.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"strings"

	"huddle/internal/observability"

	"github.com/redis/go-redis/v9"
)

const roomChannelPrefix = "feed:room:"

var (
	// ErrNoRelay is returned when the notifier has no Redis client.
	ErrNoRelay = errors.New("redis relay not configured")
	// ErrRelayUnavailable wraps publish failures that happened before the
	// command reached Redis, so no subscriber can have seen the message.
	ErrRelayUnavailable = errors.New("redis relay unavailable")
)

// NotSent reports whether a publish error guarantees the message was never
// relayed. Any other error may have reached Redis.
func NotSent(err error) bool {
	return errors.Is(err, ErrNoRelay) || errors.Is(err, ErrRelayUnavailable)
}

// Notifier relays encoded room events through Redis pub/sub so every
// process delivers to its own connections.
type Notifier struct {
	rdb *redis.Client
	// pub publishes with retries off. A retried PUBLISH can reach Redis
	// twice, and a retry failing at dial would hide a first attempt that
	// was written.
	pub *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// It opens a second, retry-free client on the same options for publishing.
func NewNotifier(rdb *redis.Client) *Notifier {
	if rdb == nil {
		return &Notifier{}
	}
	opts := *rdb.Options()
	opts.MaxRetries = -1
	return &Notifier{rdb: rdb, pub: redis.NewClient(&opts)}
}

// Close releases the publish client. The shared client is left to its owner.
func (n *Notifier) Close() error {
	if n == nil || n.pub == nil {
		return nil
	}
	return n.pub.Close()
}

// RoomChannel names the pub/sub channel of a room.
func RoomChannel(roomID string) string {
	return roomChannelPrefix + roomID
}

// PublishRoom publishes payload on the room's channel. Failures to obtain a
// connection are wrapped in ErrRelayUnavailable; timeouts and resets after
// the write are returned as they are.
func (n *Notifier) PublishRoom(ctx context.Context, roomID string, payload []byte) error {
	if n == nil || n.pub == nil {
		return ErrNoRelay
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRelayUnavailable, err)
	}
	err := n.pub.Publish(ctx, RoomChannel(roomID), payload).Err()
	if err != nil && failedBeforeSend(err) {
		return fmt.Errorf("%w: %w", ErrRelayUnavailable, err)
	}
	return err
}

// failedBeforeSend matches errors go-redis returns while acquiring a
// connection: a closed client or a refused dial.
func failedBeforeSend(err error) bool {
	if errors.Is(err, redis.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// StartRoomSubscriber subscribes to every room channel and calls onMessage
// for each message until ctx is done. The subscription is confirmed before
// it returns, so events published afterwards are not missed.
func (n *Notifier) StartRoomSubscriber(
	ctx context.Context, onMessage func(roomID string, payload []byte),
) error {
	if n == nil || n.rdb == nil {
		return ErrNoRelay
	}
	sub := n.rdb.PSubscribe(ctx, roomChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		observability.RedisErrors.WithLabelValues("subscribe").Inc()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				roomID, ok := strings.CutPrefix(msg.Channel, roomChannelPrefix)
				if !ok || roomID == "" {
					observability.Logger.Warn("feed_relay_invalid_channel", slog.String("channel", msg.Channel))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.Logger.Error("feed_relay_subscriber_panic",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(roomID, []byte(msg.Payload))
				}()
			}
		}
	}()

	return nil
}
