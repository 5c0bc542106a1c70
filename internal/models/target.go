// internal/models/target.go

package models

import (
	"net"
	"strconv"
	"time"
)

// RemoteTarget describes the machine whose hosts file is managed.
// It is built once from configuration and never mutated afterwards.
type RemoteTarget struct {
	Host                  string
	Port                  int
	Username              string
	Password              string // SSH password, also piped to sudo
	PrivateKeyPath        string
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
	ConnectTimeout        time.Duration
	KeepaliveInterval     time.Duration
	KeepaliveRetries      int
}

// Addr returns host:port suitable for dialing.
func (t RemoteTarget) Addr() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// HasCredential reports whether some form of authentication is configured.
func (t RemoteTarget) HasCredential() bool {
	return t.Password != "" || t.PrivateKeyPath != ""
}

// WithPassword returns a copy of the target using the given password.
func (t RemoteTarget) WithPassword(password string) RemoteTarget {
	t.Password = password
	return t
}
