// Package presenter resolves the share link and shows it to the user.
package presenter

import (
	"fmt"
	"net"
	"strconv"

	"github.com/jackpal/gateway"
)

// LoopbackAddress is used when no network address can be detected.
const LoopbackAddress = "127.0.0.1"

// Replaced in tests.
var (
	discoverGateway = gateway.DiscoverGateway
	interfaceAddrs  = net.InterfaceAddrs
	dial            = net.Dial
)

// ResolveLocalAddress returns the IPv4 address other devices on the network
// can reach this machine at. It never fails; the loopback address is the
// last resort.
func ResolveLocalAddress() string {
	if ip, err := addressForGateway(); err == nil {
		return ip.String()
	}
	if ip, err := addressFromRoute(); err == nil {
		return ip.String()
	}
	return LoopbackAddress
}

// addressForGateway finds the local IPv4 address in the same subnet as the
// default gateway.
func addressForGateway() (net.IP, error) {
	gwIP, err := discoverGateway()
	if err != nil {
		return nil, fmt.Errorf("failed to discover gateway: %w", err)
	}

	addrs, err := interfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve interface addresses: %w", err)
	}

	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ipv4 := ipnet.IP.To4()
		if ipv4 == nil || ipv4.IsLoopback() || !ipv4.IsGlobalUnicast() {
			continue
		}
		if ipnet.Contains(gwIP) {
			return ipv4, nil
		}
	}
	return nil, fmt.Errorf("no local IPv4 address in the subnet of gateway %s", gwIP)
}

// addressFromRoute asks the kernel which source address it would use to
// reach a public host. UDP "connect" sends no packets.
func addressFromRoute() (net.IP, error) {
	conn, err := dial("udp", "8.8.8.8:80")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || udpAddr.IP.To4() == nil || udpAddr.IP.IsUnspecified() {
		return nil, fmt.Errorf("unexpected local address %v", conn.LocalAddr())
	}
	return udpAddr.IP.To4(), nil
}

// BuildShareURL returns the URL other devices use to open the share.
func BuildShareURL(address string, port int) string {
	return "http://" + net.JoinHostPort(address, strconv.Itoa(port))
}
