package messaging

import "time"

type NatsServerOpt func(*NatsServer)

// WithStartTimeout bounds how long Start waits for the broker to accept
// connections before giving up.
func WithStartTimeout(d time.Duration) NatsServerOpt {
	return func(n *NatsServer) {
		n.startupTimeout = d
	}
}

// WithHost sets the interface beacons and collectors reach the broker on.
// It defaults to loopback.
func WithHost(host string) NatsServerOpt {
	return func(n *NatsServer) {
		n.host = host
	}
}

// WithPort sets the client port. -1 picks a free one, see ClientURL.
func WithPort(port int) NatsServerOpt {
	return func(n *NatsServer) {
		n.port = port
	}
}
