package domain

import (
	"errors"
	"fmt"

	"github.com/tandm-app/tandm/internal/docstore"
)

var (
	ErrProfileNotFound = fmt.Errorf("user profile %w", docstore.ErrNotFound)
	ErrMissingUID      = fmt.Errorf("%w: user profile has no uid", docstore.ErrValidation)
	ErrNotSignedIn     = errors.New("user not logged in")
)
