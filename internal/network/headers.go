package network

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// proxyHeaders are lower-cased header names whose presence means the request
// passed through a proxy.
var proxyHeaders = []string{"via", "x-forwarded-for", "forwarded"}

var automationKeywords = []string{"headless", "selenium", "webdriver", "puppeteer", "playwright"}

// ProxyIndicator reports whether any proxy header is present in headers,
// which must be keyed by lower-cased name.
func ProxyIndicator(headers map[string]string) bool {
	for _, name := range proxyHeaders {
		if _, ok := headers[name]; ok {
			return true
		}
	}
	return false
}

// LowerHeaders flattens h into a map keyed by lower-cased header name.
func LowerHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}

// ClientIP extracts the client IP address from the request. Behind a trusted
// proxy the first X-Forwarded-For hop wins, then X-Real-IP; otherwise only
// RemoteAddr is used.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if ip := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0]); ip != "" {
				return stripPort(ip)
			}
		}
		if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
			return stripPort(strings.TrimSpace(xrip))
		}
	}
	return stripPort(r.RemoteAddr)
}

func stripPort(addr string) string {
	// [::1]:port
	if idx := strings.LastIndex(addr, "]:"); idx != -1 {
		return addr[1:idx]
	}
	if strings.Count(addr, ":") == 1 {
		host, _, _ := strings.Cut(addr, ":")
		return host
	}
	return addr
}

// AutomationHeaders lists "Name: value" for every header value mentioning an
// automation tool. Results are sorted for stable output.
func AutomationHeaders(h http.Header) []string {
	found := []string{}
	for name, values := range h {
		for _, value := range values {
			lower := strings.ToLower(value)
			for _, kw := range automationKeywords {
				if strings.Contains(lower, kw) {
					found = append(found, fmt.Sprintf("%s: %s", name, value))
					break
				}
			}
		}
	}
	sort.Strings(found)
	return found
}
