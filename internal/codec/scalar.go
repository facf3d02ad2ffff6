package codec

import (
	"encoding/base64"
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/shopspring/decimal"
)

// Built-in scalar codecs.
var (
	String  Codec = stringCodec{}
	Integer Codec = integerCodec{}
	Long    Codec = longCodec{}
	Double  Codec = doubleCodec{}
	Decimal Codec = decimalCodec{}
	Boolean Codec = booleanCodec{}
	Binary  Codec = binaryCodec{}
	UUID    Codec = uuidCodec{}
)

type stringCodec struct{}

func (stringCodec) Encode(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", mismatch("string", v)
	}
	return s, nil
}

func (stringCodec) Decode(raw string, _ core.ValueType) (any, error) {
	return raw, nil
}

// integerCodec stores 32-bit SQL INTEGER values as int32.
type integerCodec struct{}

func (integerCodec) Encode(v any) (string, error) {
	var n int64
	switch x := v.(type) {
	case int32:
		n = int64(x)
	case int16:
		n = int64(x)
	case int8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint8:
		n = int64(x)
	case int:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return "", mismatch("integer", v)
		}
		n = int64(x)
	case int64:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return "", mismatch("integer", v)
		}
		n = x
	default:
		return "", mismatch("integer", v)
	}
	return strconv.FormatInt(n, 10), nil
}

func (integerCodec) Decode(raw string, _ core.ValueType) (any, error) {
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return nil, unparsable("integer", raw, err)
	}
	return int32(n), nil
}

type longCodec struct{}

func (longCodec) Encode(v any) (string, error) {
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int16:
		n = int64(x)
	case int8:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint8:
		n = int64(x)
	default:
		return "", mismatch("long", v)
	}
	return strconv.FormatInt(n, 10), nil
}

func (longCodec) Decode(raw string, _ core.ValueType) (any, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, unparsable("long", raw, err)
	}
	return n, nil
}

type doubleCodec struct{}

func (doubleCodec) Encode(v any) (string, error) {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 64), nil
	}
	return "", mismatch("double", v)
}

func (doubleCodec) Decode(raw string, _ core.ValueType) (any, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, unparsable("double", raw, err)
	}
	return f, nil
}

type decimalCodec struct{}

func (decimalCodec) Encode(v any) (string, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.String(), nil
	case *decimal.Decimal:
		if x == nil {
			return "", mismatch("decimal", v)
		}
		return x.String(), nil
	}
	return "", mismatch("decimal", v)
}

func (decimalCodec) Decode(raw string, _ core.ValueType) (any, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, unparsable("decimal", raw, err)
	}
	return d, nil
}

type booleanCodec struct{}

func (booleanCodec) Encode(v any) (string, error) {
	b, ok := v.(bool)
	if !ok {
		return "", mismatch("boolean", v)
	}
	return strconv.FormatBool(b), nil
}

func (booleanCodec) Decode(raw string, _ core.ValueType) (any, error) {
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, unparsable("boolean", raw, err)
	}
	return b, nil
}

// binaryCodec base64-encodes raw bytes so they survive string-only storage.
type binaryCodec struct{}

func (binaryCodec) Encode(v any) (string, error) {
	b, ok := v.([]byte)
	if !ok {
		return "", mismatch("binary", v)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (binaryCodec) Decode(raw string, _ core.ValueType) (any, error) {
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, unparsable("binary", raw, err)
	}
	return b, nil
}

type uuidCodec struct{}

func (uuidCodec) Encode(v any) (string, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x.String(), nil
	case string:
		id, err := uuid.Parse(x)
		if err != nil {
			return "", mismatch("uuid", v)
		}
		return id.String(), nil
	}
	return "", mismatch("uuid", v)
}

func (uuidCodec) Decode(raw string, _ core.ValueType) (any, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, unparsable("uuid", raw, err)
	}
	return id, nil
}
