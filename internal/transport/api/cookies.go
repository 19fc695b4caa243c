package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sandevgo/factbot/internal/core"
)

const (
	countCookie = "anonymous_chat_count"
	sinceCookie = "anonymous_chat_since"
	uidCookie   = "uid"

	counterMaxAge = 24 * 60 * 60
)

// readCounter rebuilds the client-held anonymous counter. A count without a
// start time starts its window now so the count is not lost.
func readCounter(r *http.Request, now time.Time) core.AnonymousCounter {
	var c core.AnonymousCounter
	if ck, err := r.Cookie(countCookie); err == nil {
		if n, err := strconv.Atoi(ck.Value); err == nil && n > 0 {
			c.Count = n
		}
	}
	if ck, err := r.Cookie(sinceCookie); err == nil {
		if ms, err := strconv.ParseInt(ck.Value, 10, 64); err == nil && ms > 0 {
			c.Since = time.UnixMilli(ms)
		}
	}
	if c.Count > 0 && c.Since.IsZero() {
		c.Since = now
	}
	return c
}

func writeCounter(w http.ResponseWriter, c core.AnonymousCounter) {
	for name, value := range map[string]string{
		countCookie: strconv.Itoa(c.Count),
		sinceCookie: strconv.FormatInt(c.Since.UnixMilli(), 10),
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			MaxAge:   counterMaxAge,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// requestUID prefers the body, then the X-Uid header, then the uid cookie.
func requestUID(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if h := r.Header.Get("X-Uid"); h != "" {
		return h
	}
	if ck, err := r.Cookie(uidCookie); err == nil {
		return ck.Value
	}
	return ""
}
