package codec

import (
	"time"

	"github.com/rzpsarthak13/rowsync/internal/core"
)

const dateLayout = "2006-01-02"

var (
	Date     Codec = dateCodec{}
	DateTime Codec = dateTimeCodec{}
)

// dateCodec keeps the calendar date only. Decoded values are midnight UTC.
type dateCodec struct{}

func (dateCodec) Encode(v any) (string, error) {
	t, ok := v.(time.Time)
	if !ok {
		return "", mismatch("date", v)
	}
	return t.Format(dateLayout), nil
}

func (dateCodec) Decode(raw string, _ core.ValueType) (any, error) {
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return nil, unparsable("date", raw, err)
	}
	return t, nil
}

// dateTimeCodec stores instants as RFC 3339 in UTC with full precision.
type dateTimeCodec struct{}

func (dateTimeCodec) Encode(v any) (string, error) {
	t, ok := v.(time.Time)
	if !ok {
		return "", mismatch("datetime", v)
	}
	return t.UTC().Format(time.RFC3339Nano), nil
}

func (dateTimeCodec) Decode(raw string, _ core.ValueType) (any, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, unparsable("datetime", raw, err)
	}
	return t.UTC(), nil
}
