package xhttp

import (
	"encoding/json"
	"strconv"
	"time"
)

func ReadJSON(ctx *RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func WriteJSON(ctx *RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		status = StatusInternalServerError
		b = []byte(`{"error":"failed to encode response"}`)
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func WriteError(ctx *RequestCtx, status int, msg string) {
	WriteJSON(ctx, status, map[string]string{"error": msg})
}

func Query(ctx *RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func QueryInt(ctx *RequestCtx, key string, def int) int {
	if v := Query(ctx, key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// QueryTime accepts RFC3339 or YYYY-MM-DD.
func QueryTime(ctx *RequestCtx, key string) (*time.Time, error) {
	v := Query(ctx, key)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Param returns a named path parameter as a string.
func Param(ctx *RequestCtx, name string) string {
	if v, ok := ctx.UserValue(name).(string); ok {
		return v
	}
	return ""
}
