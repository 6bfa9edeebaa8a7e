package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/roach88/noiseablate/internal/variant"
)

// timeLayout stores timestamps sortably as TEXT.
const timeLayout = time.RFC3339Nano

// marshalSpec converts a variant definition to JSON TEXT for storage.
func marshalSpec(s variant.Spec) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal variant %s: %w", s.Name, err)
	}
	return string(data), nil
}

// unmarshalSpec parses a stored variant definition.
func unmarshalSpec(data string) (variant.Spec, error) {
	var s variant.Spec
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return variant.Spec{}, fmt.Errorf("unmarshal variant: %w", err)
	}
	return s, nil
}

// realValue maps NaN to NULL since SQLite cannot hold it.
func realValue(x float64) any {
	if math.IsNaN(x) {
		return nil
	}
	return x
}

// fromReal maps NULL back to NaN.
func fromReal(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
