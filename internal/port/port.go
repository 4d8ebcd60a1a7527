// Package port parses and validates TCP port values.
package port

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	// Default is the port used when PORT is unset or unusable.
	Default = 3000

	// Min and Max bound the valid TCP port range.
	Min = 1
	Max = 65535
)

// Error describes a port value that could not be used.
type Error struct {
	Value  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid port %q: %s", e.Value, e.Reason)
}

// Parse converts a raw value (typically the PORT environment variable) into
// a port number. Surrounding whitespace is ignored.
func Parse(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, &Error{Value: raw, Reason: "empty"}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &Error{Value: raw, Reason: "not a number"}
	}
	if n < Min || n > Max {
		return 0, &Error{Value: raw, Reason: fmt.Sprintf("outside %d-%d", Min, Max)}
	}
	return n, nil
}

// Resolve returns the parsed port, or Default when raw is empty or invalid.
// The parse error is returned alongside the fallback so callers can report
// it; it is nil when raw was empty or valid.
func Resolve(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return Default, nil
	}
	n, err := Parse(raw)
	if err != nil {
		return Default, err
	}
	return n, nil
}

// Available reports whether port can currently be bound on host.
func Available(host string, port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
