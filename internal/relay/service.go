package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mediarelay/internal/config"
	"mediarelay/internal/model"
	"mediarelay/internal/staging"
)

// The multipart field name the downstream /process endpoint expects.
const downstreamFileField = "file"

// Service relays staged uploads to the downstream processing service.
type Service interface {
	// Process forwards the staged upload to the downstream /process endpoint
	// and returns its response verbatim. The staged file is always removed
	// before Process returns, whatever the outcome. Failures come back as
	// *model.RelayError; Process never re-validates the upload.
	Process(ctx context.Context, up *model.Upload) (*model.RelayResult, error)

	// Health probes the downstream /health endpoint and returns its body.
	Health(ctx context.Context) ([]byte, error)
}

type service struct {
	staging      staging.Staging
	client       *http.Client
	healthClient *http.Client
	baseURL      string
	outcomes     *prometheus.CounterVec
}

// NewService constructs the relay service. The relay client carries the
// configured long-call timeout (transcription and generation are slow); the
// health client uses a much shorter one. Both transports are traced.
func NewService(cfg config.DownstreamConfig, st staging.Staging, reg prometheus.Registerer) (Service, error) {
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total uploads relayed downstream, by outcome.",
		},
		[]string{"outcome"},
	)
	if reg != nil {
		if err := reg.Register(outcomes); err != nil {
			return nil, err
		}
	}

	transport := otelhttp.NewTransport(http.DefaultTransport)
	return &service{
		staging:      st,
		client:       &http.Client{Timeout: cfg.Timeout, Transport: transport},
		healthClient: &http.Client{Timeout: cfg.HealthTimeout, Transport: transport},
		baseURL:      cfg.BaseURL,
		outcomes:     outcomes,
	}, nil
}

func (s *service) Process(ctx context.Context, up *model.Upload) (result *model.RelayResult, err error) {
	// Staged file release is unconditional. A failed removal is logged and
	// swallowed so it can never mask the relay outcome already determined.
	defer func() {
		if remErr := s.staging.Remove(context.WithoutCancel(ctx), up); remErr != nil {
			logWarn("staged_file_cleanup_failed", map[string]any{
				"staged_path": up.StagedPath,
				"error":       remErr.Error(),
			})
		}
		s.outcomes.WithLabelValues(outcomeLabel(err)).Inc()
	}()

	f, err := s.staging.Open(ctx, up)
	if err != nil {
		return nil, model.NewRelayError(model.KindInternal, fmt.Sprintf("read staged upload: %v", err))
	}

	// Stream the staged file straight into a fresh multipart body; the
	// upload is never buffered in memory as a whole.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer f.Close()
		part, err := mw.CreateFormFile(downstreamFileField, up.OriginalFilename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/process", pr)
	if err != nil {
		return nil, model.NewRelayError(model.KindInternal, fmt.Sprintf("build downstream request: %v", err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, s.classifyTransport(err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &model.RelayError{
			Kind:    model.KindDownstreamError,
			Message: fmt.Sprintf("downstream processing failed with status %d", resp.StatusCode),
			Status:  resp.StatusCode,
			Details: errorDetails(body),
		}
	}

	return &model.RelayResult{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (s *service) Health(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return nil, model.NewRelayError(model.KindInternal, fmt.Sprintf("build health request: %v", err))
	}
	resp, err := s.healthClient.Do(req)
	if err != nil {
		return nil, s.classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, s.classifyTransport(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &model.RelayError{
			Kind:    model.KindDownstreamError,
			Message: fmt.Sprintf("downstream health check failed with status %d", resp.StatusCode),
			Status:  resp.StatusCode,
			Details: errorDetails(body),
		}
	}
	return body, nil
}

// classifyTransport maps a transport-level failure to the error taxonomy:
// deadline overruns become DownstreamTimeout, everything else (connection
// refused, DNS failure, reset) becomes DownstreamUnreachable.
func (s *service) classifyTransport(err error) *model.RelayError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return model.NewRelayError(model.KindDownstreamTimeout,
			fmt.Sprintf("downstream call exceeded the timeout; the service may be overloaded or the input too large (%v)", err))
	}
	return model.NewRelayError(model.KindDownstreamUnreachable,
		fmt.Sprintf("downstream service at %s is unreachable: %v", s.baseURL, err))
}

// errorDetails keeps a structured downstream error body structured; anything
// unparseable is carried as a plain string.
func errorDetails(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(body, &parsed); err == nil {
		return parsed
	}
	return string(body)
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	if relErr, ok := model.AsRelayError(err); ok {
		return string(relErr.Kind)
	}
	return string(model.KindInternal)
}

// logWarn emits one JSON log line, matching the request logger's format.
func logWarn(msg string, fields map[string]any) {
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "warn",
		"msg":   msg,
	}
	for k, v := range fields {
		entry[k] = v
	}
	if b, err := json.Marshal(entry); err == nil {
		log.SetFlags(0)
		log.Println(string(b))
	}
}
