package catalog

import (
	"bytes"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	NullValue ValueKind = iota
	StringValue
	NumberValue
	BoolValue
	TimeValue
)

// Value is a single field value as it leaves the engine, reduced to the few
// shapes a JSON consumer can represent.
type Value struct {
	kind ValueKind
	str  string
	num  json.Number
	b    bool
	t    time.Time
}

func Null() Value                { return Value{kind: NullValue} }
func String(s string) Value      { return Value{kind: StringValue, str: s} }
func Number(n json.Number) Value { return Value{kind: NumberValue, num: n} }
func Bool(b bool) Value          { return Value{kind: BoolValue, b: b} }
func Time(t time.Time) Value     { return Value{kind: TimeValue, t: t} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == NullValue }

// Any returns the Go value behind v.
func (v Value) Any() any {
	switch v.kind {
	case StringValue:
		return v.str
	case NumberValue:
		return v.num
	case BoolValue:
		return v.b
	case TimeValue:
		return v.t
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case StringValue:
		return v.str
	case NumberValue:
		return v.num.String()
	case BoolValue:
		return strconv.FormatBool(v.b)
	case TimeValue:
		return v.t.Format(time.RFC3339Nano)
	}
	return ""
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case StringValue:
		return json.Marshal(v.str)
	case NumberValue:
		return []byte(v.num), nil
	case BoolValue:
		return json.Marshal(v.b)
	case TimeValue:
		return json.Marshal(v.t.Format(time.RFC3339Nano))
	}
	return []byte("null"), nil
}

// ValueOf converts a decoded driver value into a Value. Types without a
// natural JSON shape are rendered as strings.
func ValueOf(x any) Value {
	switch v := x.(type) {
	case nil:
		return Null()
	case Value:
		return v
	case string:
		return String(v)
	case []byte:
		// bytea, in PostgreSQL's hex output format.
		return String(`\x` + hex.EncodeToString(v))
	case bool:
		return Bool(v)
	case int:
		return Number(json.Number(strconv.FormatInt(int64(v), 10)))
	case int8:
		return Number(json.Number(strconv.FormatInt(int64(v), 10)))
	case int16:
		return Number(json.Number(strconv.FormatInt(int64(v), 10)))
	case int32:
		return Number(json.Number(strconv.FormatInt(int64(v), 10)))
	case int64:
		return Number(json.Number(strconv.FormatInt(v, 10)))
	case uint8:
		return Number(json.Number(strconv.FormatUint(uint64(v), 10)))
	case uint16:
		return Number(json.Number(strconv.FormatUint(uint64(v), 10)))
	case uint32:
		return Number(json.Number(strconv.FormatUint(uint64(v), 10)))
	case uint64:
		return Number(json.Number(strconv.FormatUint(v, 10)))
	case float32:
		return floatValue(float64(v), 32)
	case float64:
		return floatValue(v, 64)
	case json.Number:
		return Number(v)
	case time.Time:
		return Time(v)
	case pgtype.Numeric:
		return numeric(v)
	case [16]byte:
		return String(fmt.Sprintf("%x-%x-%x-%x-%x", v[0:4], v[4:6], v[6:8], v[8:10], v[10:16]))
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return String(fmt.Sprint(v))
		}
		return String(string(b))
	case driver.Valuer:
		dv, err := v.Value()
		if err != nil {
			return String(fmt.Sprint(v))
		}
		if _, again := dv.(driver.Valuer); again {
			return String(fmt.Sprint(dv))
		}
		return ValueOf(dv)
	case fmt.Stringer:
		return String(v.String())
	}
	return String(fmt.Sprint(x))
}

func floatValue(f float64, bits int) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return String(strconv.FormatFloat(f, 'g', -1, bits))
	}
	return Number(json.Number(strconv.FormatFloat(f, 'g', -1, bits)))
}

func numeric(n pgtype.Numeric) Value {
	if !n.Valid {
		return Null()
	}
	if n.NaN {
		return String("NaN")
	}
	switch n.InfinityModifier {
	case pgtype.Infinity:
		return String("Infinity")
	case pgtype.NegativeInfinity:
		return String("-Infinity")
	}
	b, err := n.MarshalJSON()
	if err != nil {
		return String(fmt.Sprint(n))
	}
	return Number(json.Number(b))
}

// Field is one named value of a row.
type Field struct {
	Name  string
	Value Value
}

// Row keeps fields in the order the engine returned them, with their names
// exactly as returned.
type Row []Field

// Get returns the first field with the given name.
func (r Row) Get(name string) (Value, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// QueryResult is an ordered row set.
type QueryResult struct {
	Columns []string
	Rows    []Row
}

// MarshalJSON encodes the rows as a JSON array; an empty result is [].
func (r QueryResult) MarshalJSON() ([]byte, error) {
	if r.Rows == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Rows)
}
