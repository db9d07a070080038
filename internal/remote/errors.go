package remote

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// IsPermissionDenied reports whether the error is an authorization denial
// from the managed platform. These are recovered locally and never surfaced
// to the user.
func IsPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	if status.Code(err) == codes.PermissionDenied {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusForbidden || gerr.Code == http.StatusUnauthorized
	}
	return false
}

// IsUnavailable reports whether the error is a transient availability
// failure. Treated the same as permission denial: degrade to local-only.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}

// IsRecoverable reports whether the failed remote operation should fall back
// to local state without surfacing an error.
func IsRecoverable(err error) bool {
	return IsPermissionDenied(err) || IsUnavailable(err)
}
