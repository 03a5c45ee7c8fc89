// Package metrics declares the process-wide docker/go-metrics namespaces
// this module registers counters and timers against, grounded directly on
// the teacher's metrics/prometheus.go (NamespacePrefix + per-subsystem
// metrics.Namespace values registered once at package init).
package metrics

import "github.com/docker/go-metrics"

const (
	// NamespacePrefix is the namespace prefix every spk-server metric is
	// registered under.
	NamespacePrefix = "spk"
)

var (
	// CacheNamespace covers the per-address cache described in spec §4.4
	// (repo/cache.go, C3): per-map lookup counters labeled hit/miss.
	CacheNamespace = metrics.NewNamespace(NamespacePrefix, "cache", nil)

	// ServerNamespace covers the C5 network server: gRPC and HTTP payload
	// request latency.
	ServerNamespace = metrics.NewNamespace(NamespacePrefix, "server", nil)
)

func init() {
	metrics.Register(CacheNamespace)
	metrics.Register(ServerNamespace)
}
