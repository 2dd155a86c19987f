// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// RedactingLogger writes one structured access log line per request. Bodies
// are never logged. Query strings, unmatched paths and header values are
// scrubbed of emails, phone numbers (WhatsApp account ids are usually phone
// numbers) and UUIDs; credential headers are masked outright.
package middleware

import (
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const redactedValue = "[REDACTED]"

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so UUID hex groups never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)

	defaultMaskedHeaders = []string{"authorization", "cookie", "set-cookie", "proxy-authorization"}
)

// Scrub replaces UUIDs, emails and phone numbers in s with placeholders.
// UUIDs go first: the phone pattern would otherwise eat their digit groups.
func Scrub(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are masked in addition to Authorization, Cookie,
	// Set-Cookie and Proxy-Authorization. Case-insensitive.
	MaskHeaders []string
	// QuietPaths (route templates) are logged at debug level when they
	// succeed; health and metrics probes would otherwise flood the log.
	QuietPaths []string
}

// RedactingLogger attaches a request-scoped logger for LoggerFrom and logs
// the request once it completes: info for 2xx/3xx, warn for 4xx, error for 5xx.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := make(map[string]struct{}, len(defaultMaskedHeaders)+len(opts.MaskHeaders))
	for _, list := range [][]string{defaultMaskedHeaders, opts.MaskHeaders} {
		for _, h := range list {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				masked[h] = struct{}{}
			}
		}
	}
	quiet := make(map[string]struct{}, len(opts.QuietPaths))
	for _, p := range opts.QuietPaths {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		// Route templates carry no identifiers; raw paths might.
		route := c.FullPath()
		if route == "" {
			route = Scrub(c.Request.URL.Path)
		}
		clientID := ClientID(c)

		scoped := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("client_id", clientID).
			Str("method", c.Request.Method).
			Str("route", route).
			Logger()
		c.Set(loggerKey, &scoped)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Warn()
		default:
			if _, ok := quiet[route]; ok {
				ev = log.Debug()
			} else {
				ev = log.Info()
			}
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}

		ev.
			Str("request_id", RequestIDFrom(c)).
			Str("client_id", clientID).
			Str("method", c.Request.Method).
			Str("path", route).
			Str("query", truncate(Scrub(c.Request.URL.RawQuery), maxQueryLogLength)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Bool("replayed", IsReplay(c)).
			Dict("headers", scrubHeaders(c.Request.Header, masked)).
			Msg("http_request")
	}
}

func scrubHeaders(h http.Header, masked map[string]struct{}) *zerolog.Event {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)

	d := zerolog.Dict()
	for _, k := range names {
		if _, ok := masked[strings.ToLower(k)]; ok {
			d.Str(k, redactedValue)
			continue
		}
		d.Str(k, Scrub(strings.Join(h[k], ", ")))
	}
	return d
}
