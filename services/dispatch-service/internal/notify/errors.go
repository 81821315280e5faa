package notify

import "errors"

var (
	ErrNoToken   = errors.New("recipient has no push token")
	ErrNoAddress = errors.New("recipient has no email address")
)
