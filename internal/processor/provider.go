package processor

import (
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/Davincible/ai-gateway-go/internal/credential"
	"github.com/Davincible/ai-gateway-go/internal/resilience"
	streampipe "github.com/Davincible/ai-gateway-go/internal/stream/pipeline"
)

// Upstream builds provider-specific HTTP requests. One implementation per
// backend protocol.
type Upstream interface {
	Name() string
	Backend() streampipe.BackendKind
	BuildRequest(ctx context.Context, cred credential.Credential, rc *RequestContext, payload map[string]any) (*http.Request, error)
}

// UpstreamResult is a successful provider response, body already wrapped
// for decompression but not yet consumed.
type UpstreamResult struct {
	Status  int
	Header  http.Header
	Body    io.ReadCloser
	Backend streampipe.BackendKind
}

func (r *UpstreamResult) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// ProviderStep calls the routed provider: select a credential, execute with
// retry, and fail over to other credentials when the failure class warrants
// it. On success rc.Result carries the open response.
type ProviderStep struct {
	Upstreams map[string]Upstream
	Pools     *credential.Registry
	Retrier   *resilience.Retrier
	Client    *http.Client
	Logger    *slog.Logger

	// MaxSwitches bounds credential failover within one request.
	MaxSwitches int
}

func (s *ProviderStep) Name() string  { return "provider" }
func (s *ProviderStep) Enabled() bool { return true }

func (s *ProviderStep) Execute(ctx context.Context, rc *RequestContext, payload map[string]any) error {
	upstream, ok := s.Upstreams[rc.Provider]
	if !ok {
		return NewProcessError(KindConfig, s.Name(), "no upstream configured for provider %q", rc.Provider)
	}
	pool, ok := s.Pools.Get(rc.Provider)
	if !ok {
		return NewProcessError(KindCredentialPool, s.Name(), "no credential pool for provider %q", rc.Provider)
	}

	logger := s.logger()
	failover := resilience.NewFailoverManager(s.maxSwitches(), logger)
	lastFailure := resilience.FailureUnknown

	for {
		sel, err := pool.Select(excludeSet(failover.FailedCredentials()))
		if err != nil {
			return WrapProcessError(KindCredentialPool, s.Name(), err)
		}
		cred := sel.Credential
		if prev := rc.CredentialID; prev != "" && prev != cred.UUID {
			failover.RecordSwitch(prev, cred.UUID, lastFailure)
			rc.Switches++
		}
		rc.CredentialID = cred.UUID

		resp, callErr := s.callWithRetry(ctx, upstream, cred, rc, payload)
		if callErr == nil {
			pool.ReportSuccess(cred.UUID)
			rc.Status = resp.StatusCode
			rc.Result = &UpstreamResult{
				Status:  resp.StatusCode,
				Header:  resp.Header,
				Body:    decompressBody(resp),
				Backend: upstream.Backend(),
			}
			return nil
		}

		if ctx.Err() != nil {
			return WrapProcessError(KindCancelled, s.Name(), ctx.Err())
		}

		failure := resilience.ClassifyFailure(callErr.LastStatusCode, callErr.LastError)
		lastFailure = failure
		pool.ReportFailure(cred.UUID, failure, retryAfterHint(callErr))
		canSwitch := failover.RecordFailure(cred.UUID, failure)

		logger.Warn("Provider call failed",
			"provider", rc.Provider,
			"credential", cred.UUID,
			"failure", failure.String(),
			"attempts", callErr.Attempts,
			"can_switch", canSwitch,
		)

		if !canSwitch {
			if failure == resilience.FailureAuthentication {
				return NewProcessError(KindProvider, s.Name(), "upstream rejected credentials: %s", callErr.LastError)
			}
			return NewProcessError(KindRetriesExhausted, s.Name(),
				"provider %q failed after %d attempts: %s", rc.Provider, callErr.Attempts, callErr.LastError)
		}
	}
}

// callWithRetry runs one credential's attempt loop. The response is only
// returned on a non-error status.
func (s *ProviderStep) callWithRetry(ctx context.Context, upstream Upstream, cred credential.Credential, rc *RequestContext, payload map[string]any) (*http.Response, *resilience.RetryError) {
	attempts := 0
	resp, err := resilience.Execute(ctx, s.Retrier, func(ctx context.Context) (*http.Response, *resilience.AttemptError) {
		attempts++

		req, err := upstream.BuildRequest(ctx, cred, rc, payload)
		if err != nil {
			status := http.StatusBadRequest
			return nil, &resilience.AttemptError{Message: err.Error(), StatusCode: &status}
		}

		resp, err := s.client().Do(req)
		if err != nil {
			return nil, resilience.NewAttemptError(err.Error())
		}
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, resilience.NewStatusError(string(body), resp.StatusCode)
		}
		return resp, nil
	})
	rc.Retries += attempts - 1
	if err != nil {
		if re, ok := err.(*resilience.RetryError); ok {
			return nil, re
		}
		return nil, &resilience.RetryError{Attempts: attempts, LastError: err.Error()}
	}
	return resp, nil
}

func (s *ProviderStep) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *ProviderStep) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *ProviderStep) maxSwitches() int {
	if s.MaxSwitches > 0 {
		return s.MaxSwitches
	}
	return 3
}

func excludeSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// retryAfterHint extracts a cooldown duration from a quota failure message
// when the upstream sent Retry-After seconds; zero means use the default.
func retryAfterHint(err *resilience.RetryError) time.Duration {
	if err.LastStatusCode == nil || *err.LastStatusCode != http.StatusTooManyRequests {
		return 0
	}
	if secs, convErr := strconv.Atoi(err.LastError); convErr == nil && secs > 0 && secs < 3600 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// decompressBody wraps the response body with the matching decoder. The
// event-stream backend responds compressed under load.
func decompressBody(resp *http.Response) io.ReadCloser {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return resp.Body
		}
		return &wrappedBody{reader: gz, closer: resp.Body}
	case "br":
		return &wrappedBody{reader: brotli.NewReader(resp.Body), closer: resp.Body}
	default:
		return resp.Body
	}
}

type wrappedBody struct {
	reader io.Reader
	closer io.Closer
}

func (b *wrappedBody) Read(p []byte) (int, error) { return b.reader.Read(p) }
func (b *wrappedBody) Close() error               { return b.closer.Close() }
