package export

import (
	"fmt"

	"github.com/BaSui01/traceflow/span"
)

// Record field accessors shared by the wire-format adapters. Records are
// sparse maps, so every read tolerates a missing or differently-typed value.

func stringField(rec span.Record, key, fallback string) string {
	if v, ok := rec[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intField(rec span.Record, key string) int {
	switch v := rec[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func floatField(rec span.Record, key string) float64 {
	switch v := rec[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// isError reports whether the record carries a truthy is_error flag.
func isError(rec span.Record) bool {
	return intField(rec, "is_error") != 0
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
