package qi

import (
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// DefaultPort is the port the robot bus listens on.
const DefaultPort = "9559"

// hostVariables override host discovery, first set wins.
var hostVariables = []string{"NAOQI_HOSTNAME", "NAOQI_IP"}

// determineHost picks the address the bus should use to reach this
// process, and whether that address is loopback only.
func determineHost() (string, bool) {
	host := configuredHost()
	if host == "" {
		host = discoveredHost()
	}
	return host, isLoopback(host)
}

func configuredHost() string {
	for _, name := range hostVariables {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return value
		}
	}
	return ""
}

// discoveredHost prefers the machine's hostname, then its first routable
// interface address.
func discoveredHost() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" && !isLoopback(hostname) {
		return hostname
	}
	if addrs, err := net.InterfaceAddrs(); err == nil {
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !isLoopback(ipnet.IP.String()) {
				return ipnet.IP.String()
			}
		}
	}
	return "127.0.0.1"
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}

// callbackHost chooses the callback host for a given bus host. A bus on
// loopback can only call back on loopback.
func callbackHost(busHost string) (host string, listenIP string) {
	if isLoopback(busHost) {
		return "127.0.0.1", "127.0.0.1"
	}
	host, onlyLocal := determineHost()
	if onlyLocal {
		return host, "127.0.0.1"
	}
	return host, "0.0.0.0"
}

// NormalizeURL turns "host", "host:port", "tcp://host:port" or
// "http://host:port" into the HTTP endpoint of the bus.
func NormalizeURL(address string) (*url.URL, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("empty bus address")
	}
	if !strings.Contains(address, "://") {
		address = "tcp://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid bus address %q", address)
	}
	switch u.Scheme {
	case "tcp", "http":
		u.Scheme = "http"
	default:
		return nil, errors.Errorf("unsupported bus scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, errors.Errorf("bus address %q has no host", address)
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), DefaultPort)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

func listenCallback(listenIP string) (net.Listener, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(listenIP, "0"))
	if err != nil {
		return nil, errors.Wrap(err, "listening for bus callbacks")
	}
	return listener, nil
}
