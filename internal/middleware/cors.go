package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Origins is the browser origin allow-list shared by the API and the live
// check-in feed. An empty list or "*" allows every origin.
type Origins struct {
	any     bool
	allowed map[string]bool
}

// ParseOrigins reads a comma-separated allow-list such as
// "https://techsoc.example, https://scan.techsoc.example".
func ParseOrigins(s string) Origins {
	o := Origins{allowed: make(map[string]bool)}
	for _, origin := range strings.Split(s, ",") {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			o.any = true
		default:
			o.allowed[origin] = true
		}
	}
	if len(o.allowed) == 0 {
		o.any = true
	}
	return o
}

// Allows reports whether a browser at origin may call the API.
func (o Origins) Allows(origin string) bool {
	return o.any || o.allowed[origin]
}

// CheckOrigin is a websocket.Upgrader CheckOrigin. Requests without an Origin
// header come from native scanner apps, not browsers, and are let through.
func (o Origins) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || o.Allows(origin)
}

// CORS sets CORS headers for the member web app and the scanner UI.
func CORS(origins Origins) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case origins.any:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && origins.Allows(origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		default:
			origin = ""
		}
		if origins.any || origin != "" {
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
