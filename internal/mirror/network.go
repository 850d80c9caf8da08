package mirror

import "net"

// NetworkChecker reports whether the device currently has network access.
type NetworkChecker interface {
	HasNetwork() bool
}

// NetworkCheckerFunc adapts a function to NetworkChecker.
type NetworkCheckerFunc func() bool

// HasNetwork calls f.
func (f NetworkCheckerFunc) HasNetwork() bool { return f() }

// InterfaceChecker treats any up, non-loopback interface with an address as
// network access.
type InterfaceChecker struct{}

// HasNetwork implements NetworkChecker.
func (InterfaceChecker) HasNetwork() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}
