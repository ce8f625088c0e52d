package s3api

import (
	"net/http"
	"strconv"
	"strings"

	"localcloud/domain/s3"
)

// handlePreflight answers OPTIONS with the first bucket CORS rule matching
// origin, requested method and every requested header. No match → no CORS
// headers, which denies the preflight.
func (s *Service) handlePreflight(w http.ResponseWriter, r *http.Request, bucketName string) {
	origin := r.Header.Get("Origin")
	requestedMethod := r.Header.Get("Access-Control-Request-Method")
	requestedHeaders := splitHeaderList(r.Header.Get("Access-Control-Request-Headers"))

	bucket, err := s.store.Bucket(bucketName)
	if err != nil {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	rule := matchCORSRule(bucket.CORSRules, origin, requestedMethod, requestedHeaders)
	if rule == nil {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	allowOrigin := origin
	if originIsWildcard(rule) {
		allowOrigin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
	w.Header().Set("Access-Control-Allow-Methods", strings.Join(rule.AllowedMethods, ", "))
	if len(rule.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(rule.AllowedHeaders, ", "))
	}
	if len(rule.ExposeHeaders) > 0 {
		w.Header().Set("Access-Control-Expose-Headers", strings.Join(rule.ExposeHeaders, ", "))
	}
	if rule.MaxAgeSeconds > 0 {
		w.Header().Set("Access-Control-Max-Age", strconv.Itoa(rule.MaxAgeSeconds))
	}
	w.WriteHeader(http.StatusOK)
}

// applyCORSHeaders decorates an actual (non-preflight) response when a rule
// matches the origin and method; requested headers are not checked here.
func (s *Service) applyCORSHeaders(w http.ResponseWriter, r *http.Request, bucketName string) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	bucket, err := s.store.Bucket(bucketName)
	if err != nil {
		return
	}
	rule := matchCORSRule(bucket.CORSRules, origin, r.Method, nil)
	if rule == nil {
		return
	}
	if originIsWildcard(rule) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	if len(rule.ExposeHeaders) > 0 {
		w.Header().Set("Access-Control-Expose-Headers", strings.Join(rule.ExposeHeaders, ", "))
	}
}

// matchCORSRule returns the first rule satisfying origin, method and all
// requested headers.
func matchCORSRule(rules []s3.CORSRule, origin, method string, requestedHeaders []string) *s3.CORSRule {
	for i := range rules {
		rule := &rules[i]
		if !originMatches(rule.AllowedOrigins, origin) {
			continue
		}
		if !stringInFold(rule.AllowedMethods, method) {
			continue
		}
		if !headersAllowed(rule.AllowedHeaders, requestedHeaders) {
			continue
		}
		return rule
	}
	return nil
}

func originMatches(allowed []string, origin string) bool {
	for _, candidate := range allowed {
		if candidate == "*" || candidate == origin {
			return true
		}
		// A single embedded wildcard matches any substring.
		if strings.Count(candidate, "*") == 1 {
			prefix, suffix, _ := strings.Cut(candidate, "*")
			if strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
				return true
			}
		}
	}
	return false
}

func headersAllowed(allowed, requested []string) bool {
	for _, header := range requested {
		if !headerAllowed(allowed, header) {
			return false
		}
	}
	return true
}

func headerAllowed(allowed []string, header string) bool {
	for _, candidate := range allowed {
		if candidate == "*" || strings.EqualFold(candidate, header) {
			return true
		}
	}
	return false
}

func originIsWildcard(rule *s3.CORSRule) bool {
	for _, origin := range rule.AllowedOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func stringInFold(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if strings.EqualFold(candidate, needle) {
			return true
		}
	}
	return false
}

func splitHeaderList(raw string) []string {
	if raw == "" {
		return nil
	}
	pieces := strings.Split(raw, ",")
	headers := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if trimmed := strings.TrimSpace(piece); trimmed != "" {
			headers = append(headers, trimmed)
		}
	}
	return headers
}
