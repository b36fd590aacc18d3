package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-proxychain/proxychain/proxy"
)

// credentialStore holds the static user:password pairs accepted for proxy
// authentication, parsed from "user:pass" entries.
type credentialStore map[string]string

func newCredentialStore(entries []string) credentialStore {
	store := make(credentialStore, len(entries))
	for _, e := range entries {
		user, pass, ok := strings.Cut(e, ":")
		if !ok {
			slog.Warn("ignoring malformed basic_auth entry", "entry", e)
			continue
		}
		store[user] = pass
	}
	return store
}

// prepareRequestFunc builds the PrepareRequestFunc enforcing this store's
// credentials on every request, and optionally routing accepted requests
// through a fixed upstream proxy.
func (store credentialStore) prepareRequestFunc(upstream string) proxy.PrepareRequestFunc {
	return func(_ context.Context, info *proxy.RequestInfo) (*proxy.RequestResult, error) {
		if len(store) > 0 {
			pass, ok := store[info.Username]
			if !ok || pass != info.Password {
				return &proxy.RequestResult{RequestAuthentication: true, FailMsg: "invalid proxy credentials"}, nil
			}
		}
		result := &proxy.RequestResult{}
		if upstream != "" {
			result.UpstreamProxyURL = &upstream
		}
		return result, nil
	}
}
