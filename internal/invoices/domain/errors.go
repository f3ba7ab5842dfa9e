package domain

import (
	"fmt"

	"github.com/tandm-app/tandm/internal/docstore"
)

var (
	ErrInvoiceNotFound = fmt.Errorf("invoice %w", docstore.ErrNotFound)
	ErrNoLineItems     = fmt.Errorf("%w: invoice must have at least one line item", docstore.ErrValidation)
)
