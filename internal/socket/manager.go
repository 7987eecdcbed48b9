package socket

import (
    "context"
    "strings"
    "sync"

    "github.com/google/uuid"

    "github.com/gakusta-org/gakusta-backend/internal/logger"
)

const (
    TeachersChannel      = "teachers"
    studentChannelPrefix = "student:"
)

const (
    EventCodeIssued    = "code.issued"
    EventStampRedeemed = "stamp.redeemed"
    EventCardCompleted = "card.completed"
    EventGiftExchanged = "gift.exchanged"
)

func StudentChannel(uid string) string {
    return studentChannelPrefix + uid
}

func IsStudentChannel(channel string) bool {
    return strings.HasPrefix(channel, studentChannelPrefix) && len(channel) > len(studentChannelPrefix)
}

type Message struct {
    Channel string      `json:"channel"`
    Event   string      `json:"event"`
    Data    interface{} `json:"data"`
}

type Hub struct {
    log       *logger.Logger
    mu        sync.RWMutex
    channels  map[string]map[uuid.UUID]*Client

    redisPubSub *RedisPubSub
}

func NewHub(log *logger.Logger) *Hub {
    return &Hub{
        log:       log.With("component", "SocketHub"),
        channels:  make(map[string]map[uuid.UUID]*Client),
    }
}

func (h *Hub) SetRedisPubSub(rp *RedisPubSub) {
    h.redisPubSub = rp
}

func (h *Hub) Subscribe(client *Client, channels []string) {
    h.mu.Lock()
    defer h.mu.Unlock()

    if client.closed {
        return
    }
    for _, ch := range channels {
        if h.channels[ch] == nil {
            h.channels[ch] = make(map[uuid.UUID]*Client)
        }
        h.channels[ch][client.ID] = client
    }
    h.log.Debug("Client subscribed", "client", client.ID, "user", client.UserID, "channels", channels)
}

func (h *Hub) Unsubscribe(client *Client) {
    h.mu.Lock()
    defer h.mu.Unlock()
    h.unsubscribeLocked(client)
}

// retire drops client from every channel, marks it closed and closes its
// Outbound, all under the write lock. Later Subscribe and send calls are no-ops.
func (h *Hub) retire(client *Client) {
    h.mu.Lock()
    defer h.mu.Unlock()
    if client.closed {
        return
    }
    h.unsubscribeLocked(client)
    client.closed = true
    close(client.Outbound)
}

// sendTo queues msg for one client without blocking. Closed clients are skipped.
func (h *Hub) sendTo(client *Client, msg Message) bool {
    h.mu.RLock()
    defer h.mu.RUnlock()
    if client.closed {
        return false
    }
    select {
    case client.Outbound <- msg:
        return true
    default:
        return false
    }
}

func (h *Hub) unsubscribeLocked(client *Client) {
    for ch, clientsMap := range h.channels {
        if _, ok := clientsMap[client.ID]; ok {
            delete(clientsMap, client.ID)
            if len(clientsMap) == 0 {
                delete(h.channels, ch)
            }
        }
    }
    h.log.Debug("Client unsubscribed from all channels", "client", client.ID)
}

func (h *Hub) UnsubscribeFromChannel(client *Client, channel string) {
    h.mu.Lock()
    defer h.mu.Unlock()
    if clientsMap, ok := h.channels[channel]; ok {
        delete(clientsMap, client.ID)
        if len(clientsMap) == 0 {
            delete(h.channels, channel)
        }
    }
}

// SubscriberCount reports how many local clients listen on channel.
func (h *Hub) SubscriberCount(channel string) int {
    h.mu.RLock()
    defer h.mu.RUnlock()
    return len(h.channels[channel])
}

func (h *Hub) localBroadcast(msg Message) {
    h.mu.RLock()
    defer h.mu.RUnlock()

    clientsMap, ok := h.channels[msg.Channel]
    if !ok {
        return
    }
    for _, client := range clientsMap {
        select {
        case client.Outbound <- msg:
        default:
            h.log.Warn("Dropping message to client; outbound buffer full", "client", client.ID, "channel", msg.Channel)
        }
    }
}

// BroadcastGlobal delivers to local subscribers and, when configured, to
// every other instance through Redis. Remote instances skip the local echo.
func (h *Hub) BroadcastGlobal(ctx context.Context, msg Message) {
    h.localBroadcast(msg)

    if h.redisPubSub != nil {
        if err := h.redisPubSub.Publish(ctx, msg); err != nil {
            h.log.Warn("Failed to publish to Redis", "error", err)
        }
    }
}

func (h *Hub) BroadcastAll(ctx context.Context, msgs []Message) {
    for _, m := range msgs {
        h.BroadcastGlobal(ctx, m)
    }
}
