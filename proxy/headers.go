package proxy

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// hopByHopHeaders is the RFC 7230 §6.1 set that must never be forwarded.
var hopByHopHeaders = map[string]struct{}{
	"connection":          {},
	"keep-alive":          {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"te":                  {},
	"trailer":             {},
	"transfer-encoding":   {},
	"upgrade":             {},
}

// tokenRE matches an RFC 7230 token (header field name).
var tokenRE = regexp.MustCompile(`^[!#$%&'*+\-.^_` + "`" + `|~0-9A-Za-z]+$`)

// fieldValueRE matches an RFC 7230 field-value: printable VCHAR, space, or
// horizontal tab.
var fieldValueRE = regexp.MustCompile(`^[\x09\x20-\x7E\x80-\xFF]*$`)

func isValidHeaderName(name string) bool {
	return name != "" && tokenRE.MatchString(name)
}

func isValidHeaderValue(value string) bool {
	return fieldValueRE.MatchString(value)
}

// headerPair is a single raw header entry, preserving order and duplicates.
// Go's http.Header already folds duplicates under one key, so
// validHeadersOnly operates on a flattened (name, value) list built from it.
type headerPair struct {
	Name  string
	Value string
}

// validHeadersOnly filters a raw header list per RFC 7230 token/field-vchar
// rules, drops every hop-by-hop header (case-insensitive), and de-duplicates
// "host" to its first occurrence. It is idempotent: applying it twice
// yields the same result.
func validHeadersOnly(h http.Header) []headerPair {
	var pairs []headerPair
	for name, values := range h {
		for _, v := range values {
			pairs = append(pairs, headerPair{Name: name, Value: v})
		}
	}
	return validHeaderPairsOnly(pairs)
}

func validHeaderPairsOnly(pairs []headerPair) []headerPair {
	out := make([]headerPair, 0, len(pairs))
	seenHost := false
	for _, p := range pairs {
		if !isValidHeaderName(p.Name) || !isValidHeaderValue(p.Value) {
			continue
		}
		lower := strings.ToLower(p.Name)
		if _, hop := hopByHopHeaders[lower]; hop {
			continue
		}
		if lower == "host" {
			if seenHost {
				continue
			}
			seenHost = true
		}
		out = append(out, p)
	}
	return out
}

// applyHeaderPairs writes pairs into an http.Header, used when composing
// the outgoing request/response (C5 Forward Handler).
func applyHeaderPairs(dst http.Header, pairs []headerPair) {
	for _, p := range pairs {
		dst.Add(p.Name, p.Value)
	}
}

// basicAuthHeader URI-decodes the URL's username/password and builds a
// "Basic <base64>" credential string. Returns an error if the decoded
// username contains a colon.
func basicAuthHeader(u *url.URL) (string, error) {
	if u.User == nil {
		return "", nil
	}
	username := u.User.Username()
	password, _ := u.User.Password()

	if strings.Contains(username, ":") {
		return "", errors.New("Username contains an invalid colon")
	}

	creds := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return "Basic " + creds, nil
}

// parsedAuthorization is the result of parseAuthorizationHeader.
type parsedAuthorization struct {
	Type     string
	Username string
	Password string
}

var authHeaderRE = regexp.MustCompile(`^([!#$%&'*+\-.^_` + "`" + `|~0-9A-Za-z]+) ([A-Za-z0-9+/=]+)$`)

// parseAuthorizationHeader parses "<type> <base64>", splitting the decoded
// payload at the first colon. Returns nil, nil if header is empty (absent
// header); returns an error for a header that is present but malformed or
// uses a scheme other than Basic.
func parseAuthorizationHeader(header string) (*parsedAuthorization, error) {
	if header == "" {
		return nil, nil
	}
	m := authHeaderRE.FindStringSubmatch(header)
	if m == nil {
		return nil, fmt.Errorf("malformed Authorization header")
	}
	authType, payload := m[1], m[2]
	if !strings.EqualFold(authType, "basic") {
		return nil, fmt.Errorf("unsupported Authorization scheme %q", authType)
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed Authorization payload: %w", err)
	}

	username, password, _ := strings.Cut(string(decoded), ":")
	return &parsedAuthorization{Type: authType, Username: username, Password: password}, nil
}

// filterHopByHop returns a new slice holding the names that are not
// hop-by-hop headers; names itself is left unchanged. A small lo-based
// helper for a flattened name list rather than a full header list; no
// handler in this package calls it.
func filterHopByHop(names []string) []string {
	return lo.Filter(names, func(name string, _ int) bool {
		_, hop := hopByHopHeaders[strings.ToLower(name)]
		return !hop
	})
}
