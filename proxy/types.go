package proxy

import (
	"net/http"
	"net/url"

	"go.uber.org/atomic"
)

// HandlerOptions carries everything the dispatcher derives for a single
// request before handing it to one of the six handlers.
type HandlerOptions struct {
	ID                             uint64
	RequestID                      string
	IsHTTP                         bool
	TargetHost                     string
	TargetPort                     int
	UpstreamProxyURL               *url.URL
	IgnoreUpstreamProxyCertificate bool
	CustomResponseFunc             CustomResponseFunc
	CustomConnectServer            http.Handler
	LocalAddress                   string
	IPFamily                       IPFamily
	DNSLookup                      DNSLookupFunc
	CustomTag                      any
}

// RequestResult is what a PrepareRequestFunc returns. All fields are
// optional; zero value means "direct, no special handling".
type RequestResult struct {
	RequestAuthentication          bool
	FailMsg                        string
	UpstreamProxyURL               *string
	CustomResponseFunc             CustomResponseFunc
	CustomConnectServer            http.Handler
	IgnoreUpstreamProxyCertificate bool
	LocalAddress                   string
	IPFamily                       IPFamily
	DNSLookup                      DNSLookupFunc
	CustomTag                      any
}

// ServerStatistics tracks monotonically increasing request counters.
type ServerStatistics struct {
	httpRequestCount    atomic.Uint64
	connectRequestCount atomic.Uint64
}

// HTTPRequestCount returns the number of non-CONNECT requests parsed.
func (s *ServerStatistics) HTTPRequestCount() uint64 { return s.httpRequestCount.Load() }

// ConnectRequestCount returns the number of CONNECT requests parsed.
func (s *ServerStatistics) ConnectRequestCount() uint64 { return s.connectRequestCount.Load() }

// ConnectionStats is the final or in-flight byte-accounting snapshot for one
// Connection.
type ConnectionStats struct {
	SrcTxBytes int64
	SrcRxBytes int64
	TrgTxBytes *int64 // nil if no target socket was ever opened
	TrgRxBytes *int64
}
