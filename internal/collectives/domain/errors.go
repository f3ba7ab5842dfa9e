package domain

import (
	"errors"
	"fmt"

	"github.com/tandm-app/tandm/internal/docstore"
)

var (
	ErrCollectiveNotFound = fmt.Errorf("collective %w", docstore.ErrNotFound)
	ErrNotSignedIn        = errors.New("user not logged in")
)
