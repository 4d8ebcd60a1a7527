//go:build unix

package responder

import (
	"errors"

	"golang.org/x/sys/unix"
)

func classifyErrno(err error) BindReason {
	switch {
	case errors.Is(err, unix.EADDRINUSE):
		return BindInUse
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return BindPermission
	case errors.Is(err, unix.EADDRNOTAVAIL), errors.Is(err, unix.EAFNOSUPPORT):
		return BindInvalid
	}
	return BindUnknown
}
