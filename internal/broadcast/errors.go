package broadcast

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
)

// ErrorKind buckets a per-account failure.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindConnectivity      ErrorKind = "connectivity"
	KindNonceCollision    ErrorKind = "nonce_collision"
	KindNonceGap          ErrorKind = "nonce_gap"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindTimeout           ErrorKind = "timeout"
	KindRateLimited       ErrorKind = "rate_limited"
	KindCredential        ErrorKind = "invalid_credential"
	KindBuild             ErrorKind = "build"
	KindCancelled         ErrorKind = "cancelled"
	KindRPC               ErrorKind = "rpc"
)

// ErrReceiptTimeout is returned when no receipt showed up within the policy timeout.
var ErrReceiptTimeout = errors.New("timeout waiting for receipt")

// Classify maps a submission or read error onto an ErrorKind by inspecting the rpc error text.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrReceiptTimeout) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "nonce too low"),
		strings.Contains(s, "already known"),
		strings.Contains(s, "replacement transaction underpriced"):
		return KindNonceCollision
	case strings.Contains(s, "nonce too high"):
		return KindNonceGap
	case strings.Contains(s, "insufficient funds"):
		return KindInsufficientFunds
	case strings.Contains(s, "too many requests"), strings.Contains(s, "-32005"):
		return KindRateLimited
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		isTransientNetworkError(s) {
		return KindConnectivity
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindConnectivity
	}
	return KindRPC
}

func isTransientNetworkError(s string) bool {
	if s == "eof" {
		return true
	}
	for _, frag := range []string{
		"context deadline exceeded",
		"client.timeout exceeded",
		"i/o timeout",
		"tls handshake timeout",
		"connection refused",
		"connection reset",
		"no such host",
		"dial tcp",
		"broken pipe",
		"unexpected eof",
		": eof",
		"502", "503", "504",
	} {
		if strings.Contains(s, frag) {
			return true
		}
	}
	return false
}

// Describe gives the operator-facing reason for a failure.
func Describe(kind ErrorKind, err error) string {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	switch kind {
	case KindNonceCollision:
		return "nonce collision: pending transaction occupies this nonce, wait for it to be mined (" + msg + ")"
	case KindNonceGap:
		return "nonce gap: an earlier nonce was never accepted, resubmit from the next unused nonce (" + msg + ")"
	case KindInsufficientFunds:
		return "insufficient funds for value + gas"
	case KindTimeout:
		return "timeout: " + msg
	case KindCancelled:
		return "cancelled before submission"
	case KindConnectivity:
		return "network error: " + msg
	case KindRateLimited:
		return "rate limited by rpc: " + msg
	}
	return msg
}
