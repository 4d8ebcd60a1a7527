//go:build !unix

package responder

import (
	"errors"
	"os"
)

func classifyErrno(err error) BindReason {
	if errors.Is(err, os.ErrPermission) {
		return BindPermission
	}
	return BindUnknown
}
