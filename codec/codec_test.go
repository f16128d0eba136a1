package codec

import (
	"errors"
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

type venue struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestByNameRoundTrip(t *testing.T) {
	for _, name := range []string{"", NameJSON, NameMsgpack, NameCBOR} {
		t.Run("codec_"+name, func(t *testing.T) {
			c, err := ByName[venue](name)
			if err != nil {
				t.Fatalf("ByName: %v", err)
			}
			in := venue{ID: 7, Name: "Online"}
			b, err := c.Encode(in)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			out, err := c.Decode(b)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if out != in {
				t.Fatalf("got %+v want %+v", out, in)
			}
		})
	}
}

func TestByNameUnknown(t *testing.T) {
	if _, err := ByName[venue]("gob"); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}

func TestMsgpackUsesJSONTags(t *testing.T) {
	b, err := Msgpack[venue]{}.Encode(venue{ID: 1, Name: "Hall"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(b), "name") || strings.Contains(string(b), "Name") {
		t.Fatalf("expected json tag names in msgpack payload, got %q", b)
	}
}

func TestLimitCodec(t *testing.T) {
	big := venue{ID: 1, Name: "a fairly long venue name"}
	c := LimitCodec[venue]{Inner: JSON[venue]{}, Max: 32}

	b, err := c.Encode(big)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	got, err := c.Decode(b)
	if err != nil || got != big {
		t.Fatalf("oversized payload must still decode: got=%+v err=%v", got, err)
	}

	if _, err := c.Encode(venue{ID: 1, Name: "x"}); err != nil {
		t.Fatalf("value under the limit: %v", err)
	}

	c.Max = 0
	if _, err := c.Encode(big); err != nil {
		t.Fatalf("limit disabled should encode: %v", err)
	}
}

func TestProtobufCodec(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	b, err := c.Encode(wrapperspb.String("Online"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.GetValue() != "Online" {
		t.Fatalf("got %q", got.GetValue())
	}
}
