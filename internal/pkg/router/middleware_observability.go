package router

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"
	"github.com/otpgate/otpgate/internal/pkg/config"
	"github.com/otpgate/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Bodies larger than this are truncated in logs. Requests carrying codes and
// credentials are tiny; anything bigger is an upload we do not want to log.
const maxLoggedBodyBytes = 32 * 1024

// middlewareObservability opens a server span per request, emits request
// count and duration metrics, and writes redacted request/response log lines.
func middlewareObservability(cfg config.Config, ins instrument.Instrumentation) Middleware {
	secretKeys := secretKeysFromConfig(cfg)
	tracer := ins.Tracer("http.server")
	meter := ins.Meter("http.server")

	requestCounter, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Number of HTTP requests received"))
	if err != nil {
		slog.Error("failed to create http request counter", "error", err)
	}

	durationHistogram, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration in milliseconds"))
	if err != nil {
		slog.Error("failed to create http duration histogram", "error", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := matchedRoutePath(r)
			start := time.Now()

			ctx, span := tracer.Start(r.Context(), r.Method+" "+route,
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRouteKey.String(route),
				),
			)
			defer span.End()

			logInbound(ctx, r, route, snapshotRequestBody(r), secretKeys)

			rw := &statusRecorder{ResponseWriter: w, body: &bytes.Buffer{}}
			next.ServeHTTP(rw, r.WithContext(ctx))

			status := rw.statusOr(http.StatusOK)
			elapsedMs := float64(time.Since(start).Milliseconds())

			attrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCodeKey.Int(status),
			}

			if rw.err != nil {
				span.RecordError(rw.err)
			}
			switch {
			case status >= 500 && rw.err != nil:
				span.SetStatus(codes.Error, rw.err.Error())
			case status >= 500:
				span.SetStatus(codes.Error, http.StatusText(status))
			default:
				span.SetStatus(codes.Ok, "")
			}

			span.SetAttributes(attrs...)
			span.SetAttributes(
				semconv.NetworkProtocolVersionKey.String(r.Proto),
				semconv.ServerAddressKey.String(r.Host),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
				attribute.Int("http.response_content_length", rw.bytes),
			)

			if requestCounter != nil {
				requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
			}
			if durationHistogram != nil {
				durationHistogram.Record(ctx, elapsedMs, metric.WithAttributes(attrs...))
			}

			slog.InfoContext(ctx, "response sent",
				"method", r.Method,
				"path", route,
				"uri", r.RequestURI,
				"status", status,
				"bytes", rw.bytes,
				"latency_ms", time.Since(start).Milliseconds(),
				"body", loggableResponseBody(rw, secretKeys),
			)
		})
	}
}

// statusRecorder captures status, byte count, and a bounded copy of the body
// while passing optional interfaces (Flusher, Hijacker, Pusher) through.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	body   *bytes.Buffer
	capped bool
	err    error
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(p []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}

	if sr.body != nil && !sr.capped && len(p) > 0 {
		remaining := maxLoggedBodyBytes - sr.body.Len()
		switch {
		case remaining <= 0:
			sr.capped = true
		case len(p) > remaining:
			sr.body.Write(p[:remaining])
			sr.capped = true
		default:
			sr.body.Write(p)
		}
	}

	n, err := sr.ResponseWriter.Write(p)
	sr.bytes += n
	return n, err
}

// SetError lets the error codec attach the handler error for span recording.
func (sr *statusRecorder) SetError(err error) {
	sr.err = err
}

func (sr *statusRecorder) statusOr(fallback int) int {
	if sr.status == 0 {
		return fallback
	}
	return sr.status
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func matchedRoutePath(r *http.Request) string {
	if pattern := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); pattern != "" {
		return pattern
	}
	return r.URL.Path
}

// snapshotRequestBody reads up to the logging cap and splices what it read
// back onto r.Body so handlers see the full stream.
func snapshotRequestBody(r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}

	limited := io.LimitReader(r.Body, maxLoggedBodyBytes+1)
	head, _ := io.ReadAll(limited)
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), r.Body))

	if len(head) > maxLoggedBodyBytes {
		return head[:maxLoggedBodyBytes]
	}
	return head
}

func logInbound(ctx context.Context, r *http.Request, route string, body []byte, secretKeys map[string]struct{}) {
	slog.InfoContext(ctx, "request received",
		"method", r.Method,
		"path", route,
		"uri", r.RequestURI,
		"headers", redactHeaders(r.Header, secretKeys),
		"body", loggableRequestBody(r.Header.Get("Content-Type"), body, secretKeys),
	)
}

func loggableRequestBody(contentType string, body []byte, secretKeys map[string]struct{}) any {
	if len(body) == 0 {
		return nil
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err == nil {
		return redactValue(parsed, secretKeys)
	}

	if strings.HasPrefix(strings.ToLower(contentType), "application/x-www-form-urlencoded") {
		if values, err := url.ParseQuery(string(body)); err == nil {
			redacted := make(map[string]any, len(values))
			for k, v := range values {
				if _, found := secretKeys[strings.ToLower(k)]; found {
					redacted[k] = "***"
					continue
				}
				if len(v) == 1 {
					redacted[k] = v[0]
				} else {
					redacted[k] = v
				}
			}
			return redacted
		}
	}

	if !utf8.Valid(body) {
		return "<binary body omitted>"
	}
	if len(body) > maxLoggedBodyBytes {
		return string(body[:maxLoggedBodyBytes]) + "...(truncated)"
	}
	return string(body)
}

func loggableResponseBody(rw *statusRecorder, secretKeys map[string]struct{}) any {
	if rw.body == nil {
		return nil
	}

	var out any
	var parsedJSON any
	switch {
	case json.Unmarshal(rw.body.Bytes(), &parsedJSON) == nil:
		out = redactValue(parsedJSON, secretKeys)
	case utf8.Valid(rw.body.Bytes()):
		out = rw.body.String()
	case rw.body.Len() > 0:
		out = "<binary body omitted>"
	}

	if rw.capped {
		out = map[string]any{"body": out, "truncated": true}
	}
	return out
}

func redactHeaders(headers http.Header, secretKeys map[string]struct{}) http.Header {
	if len(secretKeys) == 0 {
		return headers
	}

	cloned := headers.Clone()
	for key := range cloned {
		if _, found := secretKeys[strings.ToLower(key)]; found {
			cloned.Set(key, "***")
		}
	}
	return cloned
}

func redactValue(v any, secretKeys map[string]struct{}) any {
	switch val := v.(type) {
	case map[string]any:
		redacted := make(map[string]any, len(val))
		for k, inner := range val {
			if _, found := secretKeys[strings.ToLower(k)]; found {
				redacted[k] = "***"
			} else {
				redacted[k] = redactValue(inner, secretKeys)
			}
		}
		return redacted
	case []any:
		redacted := make([]any, len(val))
		for i, inner := range val {
			redacted[i] = redactValue(inner, secretKeys)
		}
		return redacted
	default:
		return v
	}
}

func secretKeysFromConfig(cfg config.Config) map[string]struct{} {
	secretKeys := make(map[string]struct{})
	if cfg == nil {
		return secretKeys
	}
	for _, field := range cfg.GetArray("instrument.log_mask_fields") {
		field = strings.TrimSpace(strings.ToLower(field))
		if field != "" {
			secretKeys[field] = struct{}{}
		}
	}
	return secretKeys
}
