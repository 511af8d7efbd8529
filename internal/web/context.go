package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/fincore/internal/backup"
)

// withClient adds the caller's IP and User-Agent to ctx for audit logging.
// RemoteAddr has already been rewritten by TrustedRealIP.
func withClient(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return backup.ContextWithClient(ctx, ip, r.UserAgent())
}
