package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"

	"github.com/atmet-ai/foundry-facade/internal/util"
)

// Kind is the failure taxonomy used for dispatch and metrics.
type Kind string

// Failure kinds, in dispatch order.
const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindUpstream     Kind = "upstream"
	KindUnclassified Kind = "unclassified"
)

// Client-facing titles and fixed details.
const (
	TitleValidation      = "Validation Error"
	TitleNotFound        = "Resource Not Found"
	TitleUnauthorized    = "Unauthorized"
	TitleInternalError   = "Internal Server Error"
	TitlePayloadTooLarge = "Payload Too Large"

	DetailUnauthorized    = "You are not authorized to access this resource"
	DetailInternalError   = "An error occurred while processing your request"
	DetailUpstreamGeneric = "An error occurred communicating with the upstream AI service"
	DetailRateLimited     = "Rate limit exceeded. Please retry after a delay."
)

// Classification is the outcome of mapping an error onto a response.
type Classification struct {
	Kind   Kind
	Status int
	Title  string
	Detail string
	Errors map[string][]string
}

// Classify maps err onto a status, title and detail. The checks form a
// single ordered dispatch: validation, not found, authorization,
// upstream, then everything else. development controls whether raw
// messages of server-side faults reach the client.
func Classify(err error, development bool) Classification {
	if c, ok := classifyValidation(err); ok {
		return c
	}

	if errors.Is(err, util.ErrNotFound) {
		detail := err.Error()
		var nf *util.NotFoundError
		if errors.As(err, &nf) {
			detail = nf.Error()
		}
		return Classification{Kind: KindNotFound, Status: http.StatusNotFound, Title: TitleNotFound, Detail: detail}
	}

	if errors.Is(err, util.ErrUnauthorized) {
		return Classification{
			Kind:   KindUnauthorized,
			Status: http.StatusUnauthorized,
			Title:  TitleUnauthorized,
			Detail: DetailUnauthorized,
		}
	}

	if status, message, ok := upstreamStatus(err); ok {
		return classifyUpstream(status, message, development)
	}

	detail := DetailInternalError
	if development {
		detail = err.Error()
	}
	return Classification{
		Kind:   KindUnclassified,
		Status: http.StatusInternalServerError,
		Title:  TitleInternalError,
		Detail: detail,
	}
}

func classifyValidation(err error) (Classification, bool) {
	c := Classification{Kind: KindValidation, Status: http.StatusBadRequest, Title: TitleValidation}

	var verr *util.ValidationError
	if errors.As(err, &verr) {
		c.Detail = verr.Error()
		if verr.HasViolations() {
			c.Errors = verr.Fields
		}
		return c, true
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		c.Errors = make(map[string][]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			path := util.FieldPath(fe)
			c.Errors[path] = append(c.Errors[path], fe.Error())
		}
		c.Detail = (&util.ValidationError{Fields: c.Errors}).Error()
		return c, true
	}

	var sizeErr *http.MaxBytesError
	if errors.As(err, &sizeErr) {
		c.Status, c.Title = http.StatusRequestEntityTooLarge, TitlePayloadTooLarge
		c.Detail = fmt.Sprintf("request body must not exceed %d bytes", sizeErr.Limit)
		return c, true
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		c.Detail = fmt.Sprintf("request body is not valid JSON (offset %d)", syntaxErr.Offset)
		return c, true
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		msg := fmt.Sprintf("must be of type %s", typeErr.Type)
		c.Errors = map[string][]string{field: {msg}}
		c.Detail = fmt.Sprintf("validation failed: %s: %s", field, msg)
		return c, true
	}

	// json.Decoder reports truncated and blank bodies with bare io errors.
	if errors.Is(err, io.ErrUnexpectedEOF) {
		c.Detail = "request body is not valid JSON"
		return c, true
	}
	if errors.Is(err, io.EOF) {
		c.Detail = "request body is empty"
		return c, true
	}

	if errors.Is(err, util.ErrInvalidInput) {
		c.Detail = err.Error()
		return c, true
	}

	return Classification{}, false
}

// upstreamStatus extracts the status reported by the backing service.
func upstreamStatus(err error) (int, string, bool) {
	var upErr *util.UpstreamError
	if errors.As(err, &upErr) {
		return upErr.StatusCode, upErr.Message, true
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		message := respErr.ErrorCode
		if message == "" {
			message = http.StatusText(respErr.StatusCode)
		}
		return respErr.StatusCode, message, true
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return http.StatusServiceUnavailable, err.Error(), true
	}

	return 0, "", false
}

func classifyUpstream(status int, message string, development bool) Classification {
	c := Classification{Kind: KindUpstream}

	switch status {
	case http.StatusBadRequest:
		c.Status, c.Title, c.Detail = status, "Bad Request", message
	case http.StatusUnauthorized:
		c.Status, c.Title, c.Detail = status, "Unauthorized", "Invalid or missing credentials"
	case http.StatusForbidden:
		c.Status, c.Title, c.Detail = status, "Forbidden", "Insufficient permissions"
	case http.StatusNotFound:
		c.Status, c.Title, c.Detail = status, "Not Found", message
	case http.StatusConflict:
		c.Status, c.Title, c.Detail = status, "Conflict", message
	case http.StatusTooManyRequests:
		c.Status, c.Title, c.Detail = status, "Too Many Requests", DetailRateLimited
	case http.StatusInternalServerError:
		c.Status, c.Title, c.Detail = status, "Upstream Service Error", safeDetail(message, development)
	case http.StatusServiceUnavailable:
		c.Status, c.Title, c.Detail = status, "Service Unavailable", "Upstream service temporarily unavailable"
	default:
		c.Status, c.Title, c.Detail = http.StatusInternalServerError, "Upstream Error", safeDetail(message, development)
	}

	return c
}

func safeDetail(message string, development bool) string {
	if development && message != "" {
		return message
	}
	return DetailUpstreamGeneric
}
