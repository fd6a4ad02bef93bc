package fetcher

import (
	"encoding/base64"
	"sort"
	"strings"

	"github.com/jpalmerr/balanceboard/internal/monitor"
)

const (
	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"
	headerAPIKey        = "X-API-Key"
	headerCookie        = "Cookie"
)

// BuildHeaders returns the outbound headers for cfg.
//
// The set starts as Content-Type: application/json, is merged with
// auth.Headers, and then receives at most one credential header chosen by
// auth.Type. A strategy with an empty credential adds nothing.
func BuildHeaders(cfg monitor.Config) map[string]string {
	headers := map[string]string{headerContentType: "application/json"}

	auth := cfg.Auth
	if auth == nil {
		return headers
	}

	for k, v := range auth.Headers {
		headers[k] = v
	}

	switch auth.Type {
	case monitor.AuthBearer:
		if auth.Token != "" {
			headers[headerAuthorization] = "Bearer " + auth.Token
		}
	case monitor.AuthBasic:
		if auth.Username != "" && auth.Password != "" {
			credentials := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
			headers[headerAuthorization] = "Basic " + credentials
		}
	case monitor.AuthAPIKey:
		if auth.APIKey != "" {
			headers[headerAPIKey] = auth.APIKey
		}
	case monitor.AuthCookie:
		if auth.Cookie != "" {
			headers[headerCookie] = auth.Cookie
		}
	case monitor.AuthAuthorization:
		if auth.Authorization != "" {
			headers[headerAuthorization] = auth.Authorization
		}
	}

	return headers
}

// browserHeaders are dropped by every forwarder before relaying.
var browserHeaders = map[string]struct{}{
	"host":       {},
	"origin":     {},
	"referer":    {},
	"user-agent": {},
}

// StripBrowserHeaders returns a copy of headers without host, origin,
// referer and user-agent (matched case-insensitively).
func StripBrowserHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, drop := browserHeaders[strings.ToLower(k)]; drop {
			continue
		}
		filtered[k] = v
	}
	return filtered
}

// redactedHeaderNames lists header names for logs, hiding credential values.
func redactedHeaderNames(headers map[string]string) []string {
	names := make([]string, 0, len(headers))
	for k, v := range headers {
		switch strings.ToLower(k) {
		case "authorization", "cookie", "x-api-key":
			names = append(names, k+": [HIDDEN]")
		default:
			names = append(names, k+": "+v)
		}
	}
	sort.Strings(names)
	return names
}
