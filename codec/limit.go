package codec

import (
	"errors"
	"fmt"
)

// ErrTooLarge is returned by LimitCodec.Encode for values over the limit.
var ErrTooLarge = errors.New("codec: value too large to cache")

// LimitCodec wraps another codec and refuses to cache values that encode to
// more than Max bytes. If Max <= 0, size limiting is disabled.
//
// An oversized Encode returns the encoded bytes together with an error
// wrapping ErrTooLarge, so the caller can still hand the value out without
// storing it. Decode is forwarded to Inner unchanged.
type LimitCodec[V any] struct {
	Inner Codec[V]
	Max   int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.Max > 0 && len(b) > c.Max {
		return b, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(b), c.Max)
	}
	return b, nil
}

func (c LimitCodec[V]) Decode(b []byte) (V, error) { return c.Inner.Decode(b) }
