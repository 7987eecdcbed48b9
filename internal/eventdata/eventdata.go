package eventdata

import (
	"context"
	"sync"

	"github.com/gakusta-org/gakusta-backend/internal/socket"
)

type key struct{}

var eventDataKey key

// EventData buffers socket messages produced while a request runs. They are
// only broadcast once the handler knows the transaction committed.
type EventData struct {
	mu       sync.Mutex
	Messages []socket.Message
}

func WithEventData(ctx context.Context) context.Context {
	data := &EventData{
		Messages: make([]socket.Message, 0),
	}
	return context.WithValue(ctx, eventDataKey, data)
}

func GetEventData(ctx context.Context) *EventData {
	val := ctx.Value(eventDataKey)
	ed, ok := val.(*EventData)
	if !ok {
		return nil
	}
	return ed
}

func (d *EventData) AppendMessage(msg socket.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Messages = append(d.Messages, msg)
}

// Drain returns the buffered messages and empties the buffer.
func (d *EventData) Drain() []socket.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.Messages
	d.Messages = make([]socket.Message, 0)
	return out
}

// Append is a nil-safe helper for services that may run outside a request.
func Append(ctx context.Context, msg socket.Message) {
	if ed := GetEventData(ctx); ed != nil {
		ed.AppendMessage(msg)
	}
}
