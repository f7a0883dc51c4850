package manifest

import (
	"context"
	"errors"
	"net"
	"net/url"
	"syscall"

	appErrors "launcher/internal/errors"
)

// Classify maps err onto the launcher's taxonomy. Errors that already carry a
// code pass through unchanged. Connectivity failures become CodeOffline and
// everything else becomes CodeManifestFailed with the original text.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if appErrors.CodeOf(err) != appErrors.CodeUnknown {
		return err
	}
	if isOffline(err) {
		return appErrors.New(appErrors.CodeOffline, "cannot reach the update server", err)
	}
	return appErrors.New(appErrors.CodeManifestFailed, err.Error(), err)
}

func isOffline(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ENETUNREACH, syscall.EHOSTUNREACH} {
		if errors.Is(err, errno) {
			return true
		}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
