// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the calling client. Clients identify themselves with the
// X-Client-ID header; the value scopes stored plans, idempotency keys and
// rate-limit buckets. It is an identity hint, not authentication.
package middleware

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderClientID carries the caller's client identifier.
	HeaderClientID = "X-Client-ID"
	// clientIDKey is the Gin context key under which the client id is stored.
	clientIDKey = "clientID"
	// AnonymousClient is used when no valid client id is supplied.
	AnonymousClient = "anonymous"
)

var clientIDRE = regexp.MustCompile(`^[A-Za-z0-9._\-:]{1,64}$`)

// ClientIdentity stores the X-Client-ID header (when well-formed) in the Gin
// context. Malformed or missing values resolve to AnonymousClient.
func ClientIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderClientID))
		if !clientIDRE.MatchString(id) {
			id = AnonymousClient
		}
		c.Set(clientIDKey, id)
		c.Next()
	}
}

// ClientID returns the client id resolved by ClientIdentity, or
// AnonymousClient when the middleware did not run.
func ClientID(c *gin.Context) string {
	if v, ok := c.Get(clientIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return AnonymousClient
}
