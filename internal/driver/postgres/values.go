package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hgwr/TableGlass-sub000/internal/value"
)

// bindParam unwraps a Value to the Go type pgx binds positionally. UUIDs go
// out as [16]byte so the default pgtype codec picks them up.
func bindParam(v value.Value) any {
	if v.Kind() == value.KindUUID {
		return [16]byte(v.UUIDValue())
	}
	return v.Native()
}

// decodeValue maps a native cell back onto the value model. Candidates are
// tried in a fixed priority order: boolean, integer, numeric, floating,
// text, timestamp, bytes, UUID. The order matches what callers observe
// today; engines whose native representations overlap (a boolean read back
// as 0/1, say) depend on it.
func decodeValue(v any) value.Value {
	if v == nil {
		return value.Null()
	}
	switch x := v.(type) {
	case bool:
		return value.Bool(x)
	case int8:
		return value.Int(int64(x))
	case int16:
		return value.Int(int64(x))
	case int32:
		return value.Int(int64(x))
	case int64:
		return value.Int(x)
	case int:
		return value.Int(int64(x))
	case uint32:
		return value.Int(int64(x))
	case pgtype.Numeric:
		if f, err := x.Float64Value(); err == nil && f.Valid {
			return value.Double(f.Float64)
		}
		return placeholder(v)
	case float32:
		return value.Double(float64(x))
	case float64:
		return value.Double(x)
	case string:
		return value.String(x)
	case time.Time:
		return value.Timestamp(x)
	case []byte:
		// pgx may reuse the read buffer; copy before the next row.
		p := make([]byte, len(x))
		copy(p, x)
		return value.Bytes(p)
	case [16]byte:
		return value.UUID(uuid.UUID(x))
	default:
		return placeholder(v)
	}
}

// placeholder renders an undecodable non-null cell as a descriptive string
// tagged with its native type name and rendered byte length. Unmapped types
// degrade to text; they never fail the query.
func placeholder(v any) value.Value {
	s := fmt.Sprintf("%v", v)
	return value.String(fmt.Sprintf("<%T %d bytes>", v, len(s)))
}
