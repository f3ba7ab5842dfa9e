package domain

import (
	"fmt"

	"github.com/tandm-app/tandm/internal/docstore"
)

var ErrTaskNotFound = fmt.Errorf("task %w", docstore.ErrNotFound)
