package httpx

import (
	"context"
	"errors"
	"net"
)

// IsTimeout reports whether err is a deadline or network timeout. Transport
// failures and timeouts are classified the same way by callers (the
// upstream is unavailable); this only distinguishes them for log fields.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
