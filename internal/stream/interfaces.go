package stream

// Parser converts a backend's raw byte stream into events. Process may be
// called with arbitrarily split chunks; Finish flushes terminal state once
// the transport closes.
type Parser interface {
	Process(chunk []byte) []Event
	Finish() []Event
}

// Generator renders events into complete client-facing SSE frames. Finish
// emits whatever terminal frames the target format still requires.
type Generator interface {
	Generate(ev Event) []string
	Finish() []string
}
