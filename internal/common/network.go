package common

import "net"

// GetLocalIPs returns all local IP addresses
func GetLocalIPs() []string {
	ips := []string{"localhost", "127.0.0.1"}

	interfaces, err := net.Interfaces()
	if err != nil {
		return ips
	}

	foundMainIPv4 := false

	for _, i := range interfaces {
		if i.Flags&net.FlagLoopback != 0 ||
			i.Flags&net.FlagUp == 0 ||
			i.Flags&net.FlagPointToPoint != 0 {
			continue
		}

		addrs, err := i.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				// Only report the first non-loopback IPv4 address
				if ipnet.IP.To4() != nil && !foundMainIPv4 {
					ips = append(ips, ipnet.IP.String())
					foundMainIPv4 = true
				}
			}
		}
	}
	return ips
}
