package auth

import (
	"fmt"

	"jadwa/internal/domain"
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", domain.ErrUnauthenticated)
	ErrEmailAlreadyExists = fmt.Errorf("%w: email already registered", domain.ErrConflict)
	ErrAccountSuspended   = fmt.Errorf("%w: account is suspended", domain.ErrForbidden)
)
