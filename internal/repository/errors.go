package repository

import "errors"

// ErrNotFound is returned when no history is stored under a chat id. It
// hides the driver's own error (sql.ErrNoRows, redis.Nil); the service layer
// translates it into app_errors.ErrNotFound.
var ErrNotFound = errors.New("repository: not found")
