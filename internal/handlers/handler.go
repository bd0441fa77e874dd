package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/repository"
	"github.com/nimasrn/ar-collections/internal/scheduler"
	"github.com/nimasrn/ar-collections/internal/services"
	xhttp "github.com/nimasrn/ar-collections/pkg/http"
	"github.com/nimasrn/ar-collections/pkg/logger"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string       `json:"error"`
	Details []fieldError `json:"details,omitempty"`
}

// bind decodes and validates the JSON body into dst. On failure the response
// is already written.
func bind(ctx *xhttp.RequestCtx, dst any) bool {
	if err := xhttp.ReadJSON(ctx, dst); err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			xhttp.WriteError(ctx, xhttp.StatusBadRequest, err.Error())
			return false
		}
		resp := errorResponse{Error: "validation failed"}
		for _, e := range verrs {
			resp.Details = append(resp.Details, fieldError{Field: e.Field(), Message: validationMessage(e)})
		}
		xhttp.WriteJSON(ctx, xhttp.StatusBadRequest, resp)
		return false
	}
	return true
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "datetime":
		return "must be a date formatted as " + e.Param()
	case "uuid":
		return "must be a UUID"
	case "gte":
		return "must be greater than or equal to " + e.Param()
	default:
		return "is invalid"
	}
}

// writeServiceError maps domain errors onto HTTP status codes. Anything
// unknown is logged and reported as a 500 without details.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	status := errorStatus(err)
	if status >= xhttp.StatusInternalServerError {
		logger.Error("request failed", "path", string(ctx.Path()), "request_id", xhttp.RequestID(ctx), "error", err)
		xhttp.WriteError(ctx, status, xhttp.StatusText(status))
		return
	}
	xhttp.WriteError(ctx, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrInvoiceNotFound),
		errors.Is(err, repository.ErrTicketNotFound),
		errors.Is(err, repository.ErrProfileNotFound),
		errors.Is(err, repository.ErrCustomerNotFound),
		errors.Is(err, repository.ErrMemoNotFound),
		errors.Is(err, repository.ErrReminderNotFound),
		errors.Is(err, repository.ErrEmailNotFound),
		errors.Is(err, repository.ErrRuleNotFound),
		errors.Is(err, repository.ErrSyncRunNotFound),
		errors.Is(err, repository.ErrColorStatusNotFound),
		errors.Is(err, scheduler.ErrUnknownJob):
		return xhttp.StatusNotFound
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrInvalidColorStatus),
		errors.Is(err, services.ErrUnknownInvoice),
		errors.Is(err, services.ErrInvalidCollector),
		errors.Is(err, services.ErrInvalidMerge),
		errors.Is(err, services.ErrMemoWithoutSubject),
		errors.Is(err, services.ErrEmptyAttachment),
		errors.Is(err, model.ErrInvalidRole),
		errors.Is(err, model.ErrInvalidReferenceNumber):
		return xhttp.StatusBadRequest
	case errors.Is(err, model.ErrInvalidTicketTransition),
		errors.Is(err, services.ErrTicketClosed),
		errors.Is(err, repository.ErrTicketConflict),
		errors.Is(err, repository.ErrStatusUnchanged),
		errors.Is(err, services.ErrLastAdmin),
		errors.Is(err, services.ErrAlreadyApproved),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrSyncInProgress):
		return xhttp.StatusConflict
	case errors.Is(err, services.ErrAttachmentTooLarge):
		return xhttp.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrAttachmentType):
		return xhttp.StatusUnsupportedMediaType
	case errors.Is(err, services.ErrStorageNotConfigured):
		return xhttp.StatusServiceUnavailable
	}
	return xhttp.StatusInternalServerError
}

// pathUUID parses a UUID path parameter, writing a 400 when it is malformed.
func pathUUID(ctx *xhttp.RequestCtx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(xhttp.Param(ctx, name))
	if err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID returns nil for an absent parameter.
func queryUUID(ctx *xhttp.RequestCtx, key string) (*uuid.UUID, error) {
	v := xhttp.Query(ctx, key)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, errors.New("invalid " + key)
	}
	return &id, nil
}

func queryList(ctx *xhttp.RequestCtx, key string) []string {
	var out []string
	for _, part := range strings.Split(xhttp.Query(ctx, key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func pagination(ctx *xhttp.RequestCtx) (limit, offset int) {
	limit = xhttp.QueryInt(ctx, "limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset = xhttp.QueryInt(ctx, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
