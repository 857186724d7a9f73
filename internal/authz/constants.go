package authz

import "net/http"

// Capability is a permission a route requires.
type Capability string

// Capabilities.
const (
	CapabilityRead  Capability = "read"
	CapabilityWrite Capability = "write"
)

// PolicyDefault names the decision made when no expression is configured.
const PolicyDefault = "default"

// CapabilityForMethod returns the capability an HTTP method requires.
// Safe methods need read; everything else needs write.
func CapabilityForMethod(method string) Capability {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return CapabilityRead
	default:
		return CapabilityWrite
	}
}

// IsWriteMethod reports whether method requires the write capability.
func IsWriteMethod(method string) bool {
	return CapabilityForMethod(method) == CapabilityWrite
}
