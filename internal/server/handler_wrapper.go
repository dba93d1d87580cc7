package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/maruel/ksid"
	"github.com/maruel/plancart/internal/server/dto"
	"github.com/maruel/plancart/internal/server/handlers"
	"github.com/maruel/plancart/internal/server/ratelimit"
	"github.com/maruel/plancart/internal/server/reqctx"
	"github.com/maruel/plancart/internal/session"
)

// Wrap adapts fn to an http.Handler.
//
// The JSON body is decoded into In with unknown fields rejected, fields
// tagged `path:"name"` are filled from the route pattern, then Validate runs.
// The result is written as JSON; errors implementing dto.ErrorWithStatus keep
// their status and code, anything else is a 500.
//
//	func (h *PlansHandler) List(ctx context.Context, req *dto.ListPlansRequest) (*dto.PlansResponse, error)
func Wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error), cfg *handlers.Config, limiters *ratelimit.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		w, ok := checkRateLimit(w, r, limiters)
		if !ok {
			return
		}
		input, ok := decodeRequest[In, PtrIn](ctx, w, r, cfg)
		if !ok {
			return
		}
		output, err := fn(ctx, input)
		writeJSONResponse(ctx, w, output, err)
	})
}

// WrapSession is Wrap for handlers scoped to the browser session. A session
// cookie is issued when the request has no valid one.
func WrapSession[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](
	fn func(context.Context, ksid.ID, PtrIn) (*Out, error),
	sessions *session.Manager,
	cfg *handlers.Config,
	limiters *ratelimit.Config,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w, ok := checkRateLimit(w, r, limiters)
		if !ok {
			return
		}
		id, isNew, err := sessions.Resolve(w, r)
		if err != nil {
			writeJSONResponse[Out](r.Context(), w, nil, dto.InternalWithError("failed to issue session", err))
			return
		}
		ctx := reqctx.WithSession(r.Context(), id)
		if isNew {
			slog.DebugContext(ctx, "New session", "session", id, "ua", reqctx.UserAgent(ctx))
		}
		input, ok := decodeRequest[In, PtrIn](ctx, w, r, cfg)
		if !ok {
			return
		}
		output, err := fn(ctx, id, input)
		writeJSONResponse(ctx, w, output, err)
	})
}

// checkRateLimit charges the request to the client IP and wraps w so the
// response carries the rate limit headers. It returns false after writing a
// 429.
func checkRateLimit(w http.ResponseWriter, r *http.Request, limiters *ratelimit.Config) (http.ResponseWriter, bool) {
	tier := limiters.Match(r.Method, r.URL.Path)
	if tier == nil {
		return w, true
	}
	result := tier.Limiter.Allow(ratelimit.BuildKey(reqctx.GetClientIP(r), tier.Name))
	w = ratelimit.NewResponseWriter(w, result)
	if !result.Allowed {
		slog.WarnContext(r.Context(), "Rate limited", "tier", tier.Name, "retry_after", result.RetryAfter)
		writeError(w, dto.RateLimitExceeded(int(result.RetryAfter.Seconds())))
		return w, false
	}
	return w, true
}

// decodeRequest reads, binds and validates the request. It returns false
// after writing an error response.
func decodeRequest[In any, PtrIn interface {
	*In
	dto.Validatable
}](ctx context.Context, w http.ResponseWriter, r *http.Request, cfg *handlers.Config) (PtrIn, bool) {
	input := PtrIn(new(In))
	if cfg != nil && cfg.Quotas.MaxRequestBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.Quotas.MaxRequestBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, dto.PayloadTooLarge(maxBytesErr.Limit))
			return nil, false
		}
		slog.ErrorContext(ctx, "Failed to read request body", "err", err)
		writeError(w, dto.InvalidBody(err))
		return nil, false
	}
	if len(bytes.TrimSpace(body)) > 0 {
		d := json.NewDecoder(bytes.NewReader(body))
		d.DisallowUnknownFields()
		if err := d.Decode(input); err != nil {
			slog.WarnContext(ctx, "Failed to decode request body", "err", err)
			writeError(w, dto.InvalidBody(err))
			return nil, false
		}
	}
	populatePathParams(r, input)
	if err := input.Validate(); err != nil {
		slog.WarnContext(ctx, "Validation error", "err", err)
		status, resp := errorResponse(err, http.StatusBadRequest, dto.ErrorCodeValidationFailed)
		writeErrorResponse(w, status, resp)
		return nil, false
	}
	return input, true
}

// populatePathParams fills string fields tagged `path:"name"` from the route
// pattern.
func populatePathParams(r *http.Request, input any) {
	elem := reflect.ValueOf(input).Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		name := field.Tag.Get("path")
		if name == "" || field.Type.Kind() != reflect.String {
			continue
		}
		if v := r.PathValue(name); v != "" {
			elem.Field(i).SetString(v)
		}
	}
}

func writeJSONResponse[Out any](ctx context.Context, w http.ResponseWriter, output *Out, err error) {
	if err != nil {
		status, resp := errorResponse(err, http.StatusInternalServerError, dto.ErrorCodeInternal)
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "Handler error", "err", err, "status", status, "code", resp.Error.Code,
			"session", reqctx.Session(ctx), "ip", reqctx.ClientIP(ctx), "country", reqctx.CountryCode(ctx))
		writeErrorResponse(w, status, resp)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(output); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}

// errorResponse builds the client-facing error for err. The cause wrapped in
// a dto.APIError is logged but never sent; other errors get status and code,
// and 5xx ones a generic message.
func errorResponse(err error, status int, code dto.ErrorCode) (int, dto.ErrorResponse) {
	var apiErr *dto.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode(), dto.ErrorResponse{
			Error:   dto.ErrorDetails{Code: apiErr.Code(), Message: apiErr.Message()},
			Details: apiErr.Details(),
		}
	}
	var ews dto.ErrorWithStatus
	if errors.As(err, &ews) {
		return ews.StatusCode(), dto.ErrorResponse{
			Error:   dto.ErrorDetails{Code: ews.Code(), Message: ews.Error()},
			Details: ews.Details(),
		}
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = "internal error"
	}
	return status, dto.ErrorResponse{Error: dto.ErrorDetails{Code: code, Message: msg}}
}

func writeError(w http.ResponseWriter, err *dto.APIError) {
	status, resp := errorResponse(err, err.StatusCode(), err.Code())
	writeErrorResponse(w, status, resp)
}

func writeErrorResponse(w http.ResponseWriter, status int, resp dto.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "err", err)
	}
}
