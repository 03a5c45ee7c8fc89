package server

import (
	"context"
	"net/http"
	"time"

	"google.golang.org/grpc"

	"github.com/spkrepo/spk/metrics"
)

// requestTimer tracks gRPC/HTTP request latency, labeled by protocol and
// method/route, following the teacher's registry/storage/cache/metrics
// NewLabeledTimer + UpdateSince pattern.
var requestTimer = metrics.ServerNamespace.NewLabeledTimer("requests", "Request latency", "protocol", "method")

// metricsUnaryInterceptor times every gRPC call by its full method name.
func metricsUnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	requestTimer.WithValues("grpc", info.FullMethod).UpdateSince(start)
	return resp, err
}

// withRequestMetrics times every HTTP payload request by method+path.
func withRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		requestTimer.WithValues("http", r.Method+" /payload/{digest}").UpdateSince(start)
	})
}
