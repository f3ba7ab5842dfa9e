package domain

import (
	"fmt"

	"github.com/tandm-app/tandm/internal/docstore"
)

var (
	ErrProjectNotFound = fmt.Errorf("project %w", docstore.ErrNotFound)
	ErrInvalidDates    = fmt.Errorf("%w: end date is before start date", docstore.ErrValidation)
)
