package xhttp

import "github.com/valyala/fasthttp"

const (
	StatusOK                    = fasthttp.StatusOK
	StatusCreated               = fasthttp.StatusCreated
	StatusAccepted              = fasthttp.StatusAccepted
	StatusNoContent             = fasthttp.StatusNoContent
	StatusBadRequest            = fasthttp.StatusBadRequest
	StatusUnauthorized          = fasthttp.StatusUnauthorized
	StatusForbidden             = fasthttp.StatusForbidden
	StatusNotFound              = fasthttp.StatusNotFound
	StatusMethodNotAllowed      = fasthttp.StatusMethodNotAllowed
	StatusConflict              = fasthttp.StatusConflict
	StatusRequestTimeout        = fasthttp.StatusRequestTimeout
	StatusRequestEntityTooLarge = fasthttp.StatusRequestEntityTooLarge
	StatusUnsupportedMediaType  = fasthttp.StatusUnsupportedMediaType
	StatusUnprocessableEntity   = fasthttp.StatusUnprocessableEntity
	StatusInternalServerError   = fasthttp.StatusInternalServerError
	StatusServiceUnavailable    = fasthttp.StatusServiceUnavailable
)

func StatusText(code int) string {
	return fasthttp.StatusMessage(code)
}
