package models

// ConnectionClass describes the kind of link the device is currently using.
type ConnectionClass string

const (
	ConnectionWifi     ConnectionClass = "wifi"
	ConnectionCellular ConnectionClass = "cellular"
	ConnectionWired    ConnectionClass = "wired"
	ConnectionUnknown  ConnectionClass = "unknown"
)

// NetworkStatus is an immutable connectivity snapshot. Observers replace the
// whole value on every change; individual fields are never mutated in place.
type NetworkStatus struct {
	Connected   bool
	Class       ConnectionClass
	Expensive   bool
	Constrained bool
}

// Unreachable is the zero-value status used before the first observation.
func Unreachable() NetworkStatus {
	return NetworkStatus{Connected: false, Class: ConnectionUnknown}
}
