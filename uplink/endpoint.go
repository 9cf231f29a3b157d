// Package uplink is the host-side companion to package cyphal: a
// black-box flight recorder for a Cyphal/CAN gateway. It never sees DSDL
// payload content, only opaque transfer records and receiver counters,
// and it lives entirely outside the no-heap reception engine.
package uplink

import (
	"net"
	"net/url"
	"os"
	"strings"
)

// Endpoint identifies the Azure Storage account a Recorder archives to,
// parsed from a connection URL the same way the teacher's aznet.Endpoint
// does: host-style (account.blob.core.windows.net) or path-style
// (emulator/account), with account key falling back to the standard
// AZURE_STORAGE_ACCOUNT[_KEY] environment variables.
type Endpoint struct {
	URL     *url.URL
	Account string
	Key     string
	IsAzure bool
}

// NewEndpoint parses a storage connection URL into an Endpoint.
func NewEndpoint(u *url.URL) *Endpoint {
	ep := &Endpoint{URL: u}

	hostOnly := u.Host
	if h, _, err := net.SplitHostPort(u.Host); err == nil {
		hostOnly = h
	}
	ep.IsAzure = strings.HasSuffix(strings.ToLower(hostOnly), ".core.windows.net")

	switch {
	case u.User.Username() != "":
		ep.Account = u.User.Username()
	case ep.IsAzure:
		ep.Account = strings.Split(hostOnly, ".")[0]
	default:
		if path := strings.Trim(u.Path, "/"); path != "" {
			ep.Account = strings.Split(path, "/")[0]
		}
	}
	if ep.Account == "" {
		ep.Account = os.Getenv("AZURE_STORAGE_ACCOUNT")
	}
	if key, ok := u.User.Password(); ok {
		ep.Key = key
	} else {
		ep.Key = os.Getenv("AZURE_STORAGE_ACCOUNT_KEY")
	}
	return ep
}

// ServiceURL returns the base URL for the storage service this endpoint
// names.
func (e *Endpoint) ServiceURL() string {
	if e.IsAzure {
		return e.URL.Scheme + "://" + e.URL.Host
	}
	return e.URL.Scheme + "://" + e.URL.Host + "/" + e.Account
}
