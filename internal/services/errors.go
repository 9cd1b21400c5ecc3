package services

import "errors"

var (
	// ErrNotificationNotFound is returned when a notification id does not resolve.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrUserNotFound is returned by the user directory when neither the cache
	// nor the remote directory can resolve a user.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenUnavailable wraps every failure to obtain a directory credential.
	ErrTokenUnavailable = errors.New("directory token unavailable")
	// ErrEmailSendFailed wraps transport errors from a Mailer.
	ErrEmailSendFailed = errors.New("email send failed")
)
