package docstore

import (
	"encoding/json"
	"fmt"
	"path"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tandm-app/tandm/internal/logging"
)

// TagName is the struct tag entity services use to map document fields.
const TagName = "doc"

var validate = validator.New(validator.WithRequiredStructEnabled())

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// Decode maps doc.Data onto out (a pointer to a struct tagged with `doc`)
// and runs its `validate` rules. Any mismatch is reported as ErrDecoding.
func Decode(doc *Document, out any) error {
	if doc == nil || doc.Data == nil {
		return fmt.Errorf("%w: %s: empty document", ErrDecoding, docRef(doc))
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: TagName,
		Result:  out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			timeHook,
			decimalHook,
		),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecoding, docRef(doc), err)
	}
	if err := dec.Decode(doc.Data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecoding, docRef(doc), err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecoding, docRef(doc), err)
	}
	return nil
}

// ValidateInput runs `validate` rules on a create/update input and reports
// failures as ErrValidation.
func ValidateInput(in any) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// DecodeAll decodes docs with fn, skipping documents that fail. Every skipped
// document is reported to onDrop; the result counts valid documents only.
func DecodeAll[T any](docs []*Document, fn func(*Document) (T, error), onDrop func(*Document, error)) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := fn(doc)
		if err != nil {
			if onDrop != nil {
				onDrop(doc, err)
			}
			continue
		}
		out = append(out, v)
	}
	return out
}

// DropReporter returns an onDrop callback for DecodeAll that logs the skipped
// document and reports its collection name (last path segment) to count.
func DropReporter(log *zap.Logger, count func(collection string)) func(*Document, error) {
	log = logging.OrNop(log)
	return func(doc *Document, err error) {
		log.Warn("dropping malformed document",
			zap.String("collection", doc.Collection),
			zap.String("id", doc.ID),
			zap.Error(err))
		if count != nil {
			count(path.Base(doc.Collection))
		}
	}
}

func docRef(doc *Document) string {
	if doc == nil {
		return "<nil>"
	}
	return doc.Collection + "/" + doc.ID
}

func timeHook(from, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", v, err)
		}
		return t, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, nil
		}
		return *v, nil
	}
	return data, nil
}

func decimalHook(from, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return decimal.NewFromString(v)
	case json.Number:
		return decimal.NewFromString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	}
	return data, nil
}
