// Package guard holds the input and I/O checks shared by the DevLens server,
// client and capture tool: secret strength, page and webhook URL checks,
// and bounded body reads.
package guard

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
)

// MinSecretLen is the minimum length of the session signing secret.
const MinSecretLen = 32

// MaxErrorBody caps how much of an error response body is read.
const MaxErrorBody int64 = 64 << 10

var (
	ErrSecretTooShort = fmt.Errorf("guard: secret must be at least %d bytes", MinSecretLen)
	ErrUnsafeScheme   = errors.New("guard: only http and https schemes are allowed")
	ErrNoHost         = errors.New("guard: URL has no host")
	ErrPrivateTarget  = errors.New("guard: URL targets a private or loopback address")
)

// ValidateSecret checks that secret is at least MinSecretLen bytes.
func ValidateSecret(secret []byte) error {
	if len(secret) < MinSecretLen {
		return ErrSecretTooShort
	}
	return nil
}

// PageURL parses the URL of a page feedback was filed from. It must be an
// absolute http(s) URL with a host. Loopback and private hosts are fine:
// DevLens is mostly pointed at local dev servers.
func PageURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("guard: invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, ErrUnsafeScheme
	}
	if u.Hostname() == "" {
		return nil, ErrNoHost
	}
	return u, nil
}

// WebhookURL checks an outbound webhook target. Unless allowPrivate is set,
// literal private or loopback IPs, and hostnames resolving to them, are
// rejected. DNS failures are let through; the POST will fail on its own.
func WebhookURL(raw string, allowPrivate bool) error {
	u, err := PageURL(raw)
	if err != nil {
		return err
	}
	if allowPrivate {
		return nil
	}
	host := u.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		if privateIP(ip) {
			return ErrPrivateTarget
		}
		return nil
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && privateIP(ip) {
			return ErrPrivateTarget
		}
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("guard: body exceeds %d bytes", maxBytes)
	}
	return data, nil
}

func privateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
