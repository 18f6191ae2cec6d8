package stream

import "sync"

// UIEventKind discriminates the coarse events exposed to frontends that want
// to follow a generation without speaking a wire protocol.
type UIEventKind string

const (
	UIText      UIEventKind = "text_delta"
	UIToolStart UIEventKind = "tool_start"
	UIToolEnd   UIEventKind = "tool_end"
	UIDone      UIEventKind = "done"
	UIFinalDone UIEventKind = "final_done"
	UIError     UIEventKind = "error"
)

// UIEvent is the subscriber-facing projection of a stream Event.
type UIEvent struct {
	Kind       UIEventKind
	RequestID  string
	Text       string
	ToolID     string
	ToolName   string
	StopReason StopReason
	Message    string
}

// UIEventFrom projects a stream event onto the subscriber vocabulary.
// Structural events with no UI meaning report ok=false.
func UIEventFrom(ev Event) (UIEvent, bool) {
	switch ev.Type {
	case EventTextDelta:
		return UIEvent{Kind: UIText, Text: ev.Text}, true
	case EventToolUseStart:
		return UIEvent{Kind: UIToolStart, ToolID: ev.ToolID, ToolName: ev.ToolName}, true
	case EventToolUseStop:
		return UIEvent{Kind: UIToolEnd, ToolID: ev.ToolID}, true
	case EventMessageStop:
		return UIEvent{Kind: UIDone, StopReason: ev.StopReason}, true
	case EventError:
		return UIEvent{Kind: UIError, Message: ev.ErrorMessage}, true
	}
	return UIEvent{}, false
}

const subscriberBuffer = 100

// Notifier fans UI events out to subscribers over bounded channels. A
// subscriber that stops draining loses events rather than stalling the
// stream that publishes them.
type Notifier struct {
	mu   sync.Mutex
	subs map[int]chan UIEvent
	next int
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan UIEvent)}
}

// Subscribe registers a new listener. The returned cancel func closes the
// channel and must be called exactly once.
func (n *Notifier) Subscribe() (<-chan UIEvent, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan UIEvent, subscriberBuffer)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber with buffer room.
func (n *Notifier) Publish(ev UIEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
