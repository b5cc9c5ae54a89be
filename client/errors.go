package client

import "errors"

var (
	// ErrLogoutInProgress is an exported constant or variable used by the authentication client.
	ErrLogoutInProgress = errors.New("logout in progress")
	// ErrRefreshRejected is an exported constant or variable used by the authentication client.
	ErrRefreshRejected = errors.New("refresh rejected")
	// ErrNetworkUnavailable is an exported constant or variable used by the authentication client.
	ErrNetworkUnavailable = errors.New("network unavailable")
)
