package auth

import "errors"

var (
	ErrBlankPermissionType = errors.New("permission type is blank")
	ErrDuplicatePermission = errors.New("duplicate permission type")
	ErrUnknownAction       = errors.New("unknown permission action")
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)
