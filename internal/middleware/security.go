package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// SecureHeaders sets browser hardening headers on every non-websocket
// response. Empty fields are left unset, except the content security policy
// which falls back to one suited to the bundled frontend.
type SecureHeaders struct {
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	ContentSecurityPolicy string
	XFrameOptions         string
	XContentTypeOptions   string
	ReferrerPolicy        string
	PermissionsPolicy     string

	// DevMode lets a frontend dev server on another origin load scripts and
	// open the websocket.
	DevMode bool
}

// DefaultSecureHeaders returns the headers the server uses.
func DefaultSecureHeaders(devMode bool) *SecureHeaders {
	sh := &SecureHeaders{
		HSTSMaxAge:            63072000,
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		DevMode:               devMode,
	}
	if !devMode {
		sh.PermissionsPolicy = "camera=(), geolocation=(), microphone=(), payment=(), usb=()"
	}
	return sh
}

var (
	productionCSP = []string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline'",
		"style-src 'self' 'unsafe-inline'",
		// plots are rendered to canvas and downloaded as blobs
		"img-src 'self' data: blob:",
		"connect-src 'self' ws: wss:",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}
	devCSP = []string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline' 'unsafe-eval' *",
		"style-src 'self' 'unsafe-inline' *",
		"img-src * data: blob:",
		"connect-src *",
	}
)

func (sh *SecureHeaders) headers(tls bool) map[string]string {
	csp := sh.ContentSecurityPolicy
	if csp == "" {
		directives := productionCSP
		if sh.DevMode {
			directives = devCSP
		}
		csp = strings.Join(directives, "; ")
	}

	out := map[string]string{
		"Content-Security-Policy": csp,
		"X-Frame-Options":         sh.XFrameOptions,
		"X-Content-Type-Options":  sh.XContentTypeOptions,
		"Referrer-Policy":         sh.ReferrerPolicy,
		"Permissions-Policy":      sh.PermissionsPolicy,
	}
	if tls && sh.HSTSMaxAge > 0 {
		hsts := "max-age=" + strconv.Itoa(sh.HSTSMaxAge)
		if sh.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
		out["Strict-Transport-Security"] = hsts
	}
	return out
}

// Handler returns the middleware.
func (sh *SecureHeaders) Handler(next http.Handler) http.Handler {
	plain, secure := sh.headers(false), sh.headers(true)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			set := plain
			if r.TLS != nil {
				set = secure
			}
			for name, value := range set {
				if value != "" {
					w.Header().Set(name, value)
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
