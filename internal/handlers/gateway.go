package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Davincible/ai-gateway-go/internal/middleware"
	"github.com/Davincible/ai-gateway-go/internal/processor"
	"github.com/Davincible/ai-gateway-go/internal/stream"
	streampipe "github.com/Davincible/ai-gateway-go/internal/stream/pipeline"
)

const (
	// streamBufferSize bounds the frame channel so a slow client applies
	// backpressure to the upstream read instead of growing memory.
	streamBufferSize = 100

	defaultIdleTimeout = 60 * time.Second
)

// Gateway serves the chat ingress endpoints. The request pipeline resolves
// provider and credentials and leaves an open upstream response; the gateway
// renders it in the client's protocol, streamed or aggregated.
type Gateway struct {
	pipeline   *processor.Pipeline
	completion *processor.Pipeline
	logger     *slog.Logger

	// IdleTimeout aborts a stream when the upstream goes silent.
	IdleTimeout time.Duration

	// Notifier, when set, publishes UI-level stream events to subscribers.
	Notifier *stream.Notifier
}

func NewGateway(pipeline, completion *processor.Pipeline, logger *slog.Logger) *Gateway {
	return &Gateway{
		pipeline:    pipeline,
		completion:  completion,
		logger:      logger,
		IdleTimeout: defaultIdleTimeout,
	}
}

// HandleChatCompletions serves POST /v1/chat/completions.
func (g *Gateway) HandleChatCompletions(w http.ResponseWriter, r *http.Request) {
	g.handle(w, r, processor.FrontendOpenAI)
}

// HandleMessages serves POST /v1/messages.
func (g *Gateway) HandleMessages(w http.ResponseWriter, r *http.Request) {
	g.handle(w, r, processor.FrontendAnthropic)
}

func (g *Gateway) handle(w http.ResponseWriter, r *http.Request, frontend processor.Frontend) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		processor.WriteError(w, processor.NewProcessError(processor.KindInternal, "ingress", "read request body: %v", err))
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"request body is not valid JSON","type":"invalid_request_error","code":400}}`))
		return
	}

	model, _ := payload["model"].(string)
	wantStream, _ := payload["stream"].(bool)

	rc := processor.NewRequestContext(frontend, model)
	rc.ClientKey = middleware.ClientToken(r)
	if id := middleware.RequestIDFrom(r); id != "" {
		rc.RequestID = id
	}
	rc.ForceProvider = chi.URLParam(r, "provider")
	rc.Streamed = wantStream

	if err := g.pipeline.Run(r.Context(), rc, payload); err != nil {
		pe := processor.AsProcessError(err)
		g.logger.Error("Request failed",
			"request_id", rc.RequestID,
			"step", pe.Step,
			"type", pe.Kind.TypeString(),
			"error", pe.Message,
		)
		rc.Status = pe.Kind.HTTPStatus()
		g.complete(r.Context(), rc, payload)
		processor.WriteError(w, pe)
		return
	}

	result := rc.Result
	if result == nil {
		processor.WriteError(w, processor.NewProcessError(processor.KindInternal, "ingress", "pipeline produced no upstream response"))
		return
	}
	defer result.Close()

	if wantStream {
		g.streamResponse(w, r, rc, result)
	} else {
		g.fullResponse(w, r, rc, result)
	}
	g.complete(r.Context(), rc, payload)
}

// complete runs the post-response steps (plugin hooks, telemetry).
func (g *Gateway) complete(ctx context.Context, rc *processor.RequestContext, payload map[string]any) {
	if g.completion == nil {
		return
	}
	// Telemetry still runs when the client went away.
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := g.completion.Run(ctx, rc, payload); err != nil {
		g.logger.Warn("Completion pipeline failed", "request_id", rc.RequestID, "error", err)
	}
}

func (g *Gateway) fullResponse(w http.ResponseWriter, r *http.Request, rc *processor.RequestContext, result *processor.UpstreamResult) {
	parser, err := streampipe.NewParser(result.Backend, backendModel(rc), g.logger)
	if err != nil {
		processor.WriteError(w, processor.WrapProcessError(processor.KindInternal, "response", err))
		return
	}

	agg := newAggregate(rc.Model)
	if err := agg.collect(parser, newIdleReader(r.Context(), result.Body, g.idleTimeout())); err != nil {
		processor.WriteError(w, processor.WrapProcessError(processor.KindStreamIdleTimeout, "response", err))
		rc.Status = http.StatusRequestTimeout
		return
	}
	rc.Usage = agg.usage

	var body []byte
	if rc.Frontend == processor.FrontendAnthropic {
		body = agg.anthropicResponse()
	} else {
		body = agg.openAIResponse()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (g *Gateway) streamResponse(w http.ResponseWriter, r *http.Request, rc *processor.RequestContext, result *processor.UpstreamResult) {
	pipe, err := streampipe.New(streampipe.Config{
		Backend:   result.Backend,
		Frontend:  frontendKind(rc.Frontend),
		Model:     backendModel(rc),
		Logger:    g.logger,
		Notifier:  g.Notifier,
		RequestID: rc.RequestID,
	})
	if err != nil {
		processor.WriteError(w, processor.WrapProcessError(processor.KindInternal, "response", err))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	frames := make(chan string, streamBufferSize)
	readErr := make(chan error, 1)

	go func() {
		defer close(frames)
		buf := make([]byte, 32*1024)
		for {
			n, err := result.Body.Read(buf)
			if n > 0 {
				for _, frame := range pipe.ProcessChunk(buf[:n]) {
					select {
					case frames <- frame:
					case <-r.Context().Done():
						return
					}
				}
			}
			if err != nil {
				if err != io.EOF {
					readErr <- err
				}
				for _, frame := range pipe.Finish() {
					select {
					case frames <- frame:
					case <-r.Context().Done():
						return
					}
				}
				return
			}
		}
	}()

	idle := time.NewTimer(g.idleTimeout())
	defer idle.Stop()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				rc.Usage = pipe.Usage()
				select {
				case err := <-readErr:
					g.logger.Warn("Upstream stream ended with error", "request_id", rc.RequestID, "error", err)
				default:
				}
				return
			}
			io.WriteString(w, frame)
			if flusher != nil {
				flusher.Flush()
			}
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(g.idleTimeout())

		case <-idle.C:
			g.logger.Error("Stream idle timeout", "request_id", rc.RequestID, "timeout", g.idleTimeout())
			rc.Status = http.StatusRequestTimeout
			writeStreamError(w, flusher, rc.Frontend, "stream_idle_timeout", "upstream produced no data before the idle timeout")
			return

		case <-r.Context().Done():
			rc.Status = statusClientClosed
			return
		}
	}
}

const statusClientClosed = 499

// writeStreamError emits an in-band error once the SSE stream has started
// and headers are gone.
func writeStreamError(w io.Writer, flusher http.Flusher, frontend processor.Frontend, errType, message string) {
	payload, _ := json.Marshal(map[string]any{
		"type": "error",
		"error": map[string]any{
			"type":    errType,
			"message": message,
		},
	})
	if frontend == processor.FrontendAnthropic {
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
	} else {
		fmt.Fprintf(w, "data: %s\n\n", payload)
	}
	if flusher != nil {
		flusher.Flush()
	}
}

func frontendKind(f processor.Frontend) streampipe.FrontendKind {
	if f == processor.FrontendAnthropic {
		return streampipe.FrontendAnthropic
	}
	return streampipe.FrontendOpenAI
}

// backendModel is the model name echoed into synthesized frames.
func backendModel(rc *processor.RequestContext) string {
	return rc.Model
}

func (g *Gateway) idleTimeout() time.Duration {
	if g.IdleTimeout > 0 {
		return g.IdleTimeout
	}
	return defaultIdleTimeout
}

// idleReader aborts reads that stall longer than the timeout, for the
// non-streaming path where there is no frame loop to watch the clock.
type idleReader struct {
	ctx     context.Context
	r       io.Reader
	timeout time.Duration
}

func newIdleReader(ctx context.Context, r io.Reader, timeout time.Duration) io.Reader {
	return &idleReader{ctx: ctx, r: r, timeout: timeout}
}

type readResult struct {
	n   int
	err error
}

func (ir *idleReader) Read(p []byte) (int, error) {
	done := make(chan readResult, 1)
	go func() {
		n, err := ir.r.Read(p)
		done <- readResult{n: n, err: err}
	}()

	timer := time.NewTimer(ir.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.n, res.err
	case <-timer.C:
		return 0, fmt.Errorf("no upstream data within %s", ir.timeout)
	case <-ir.ctx.Done():
		return 0, ir.ctx.Err()
	}
}
