package chain

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func payloads(c Chain) []string {
	out := make([]string, 0, c.Len())
	for e := range c.All() {
		out = append(out, string(e.Payload()))
	}
	return out
}

func counter(start SequenceID) func() SequenceID {
	next := start
	return func() SequenceID {
		next++
		return next
	}
}

func TestEmptyChain(t *testing.T) {
	var zero Chain
	for name, c := range map[string]Chain{"zero value": zero, "Empty()": Empty(), "New()": New(), "FromPayloads()": FromPayloads()} {
		t.Run(name, func(t *testing.T) {
			if !c.IsEmpty() {
				t.Errorf("IsEmpty() = false, want true")
			}
			if c.Iterator().HasNext() {
				t.Errorf("Iterator().HasNext() = true, want false")
			}
			if _, ok := c.Last(); ok {
				t.Errorf("Last() ok = true, want false")
			}
		})
	}
}

func TestIterator(t *testing.T) {
	c := New(NewElement(1, []byte("a")), NewElement(2, []byte("b")), NewElement(5, []byte("c")))

	// iterators are re-obtainable and independent
	for round := 0; round < 2; round++ {
		it := c.Iterator()
		var got []SequenceID
		for it.HasNext() {
			got = append(got, it.Next().ID())
		}
		if want := []SequenceID{1, 2, 5}; !reflect.DeepEqual(got, want) {
			t.Errorf("round %d: ids = %v, want %v", round, got, want)
		}
		if it.HasNext() {
			t.Errorf("round %d: exhausted iterator reports HasNext", round)
		}
	}

	defer func() {
		if recover() == nil {
			t.Errorf("Next() on exhausted iterator did not panic")
		}
	}()
	it := Empty().Iterator()
	it.Next()
}

func TestSnapshotsDoNotAlias(t *testing.T) {
	payload := []byte("value")
	e := NewElement(1, payload)
	payload[0] = 'X'
	if string(e.Payload()) != "value" {
		t.Errorf("NewElement() aliases caller payload: %q", e.Payload())
	}

	e.Payload()[0] = 'Y'
	if string(e.Payload()) != "value" || e.PayloadLen() != 5 {
		t.Errorf("Payload() returns internal slice")
	}

	elements := []Element{NewElement(1, []byte("a"))}
	c := New(elements...)
	elements[0] = NewElement(9, []byte("z"))
	if c.At(0).ID() != 1 {
		t.Errorf("New() aliases caller slice")
	}

	base := New(NewElement(1, []byte("a")))
	grown := base.Appended(NewElement(2, []byte("b")))
	if base.Len() != 1 || grown.Len() != 2 {
		t.Errorf("Appended() lengths = %d/%d, want 1/2", base.Len(), grown.Len())
	}
	other := base.Appended(NewElement(3, []byte("c")))
	if grown.At(1).ID() != 2 || other.At(1).ID() != 3 {
		t.Errorf("Appended() results share elements: %v %v", grown.IDs(), other.IDs())
	}
}

func TestReplaceHead(t *testing.T) {
	abc := New(NewElement(1, []byte("a")), NewElement(2, []byte("b")), NewElement(3, []byte("c")))

	tests := []struct {
		name     string
		live     Chain
		expect   Chain
		update   Chain
		wantOK   bool
		wantIDs  []SequenceID
		wantData []string
	}{
		{
			name:     "full match compacts",
			live:     abc,
			expect:   abc,
			update:   FromPayloads([]byte("d")),
			wantOK:   true,
			wantIDs:  []SequenceID{11},
			wantData: []string{"d"},
		},
		{
			name:     "tail after expect survives",
			live:     abc,
			expect:   New(abc.At(0)),
			update:   FromPayloads([]byte("g")),
			wantOK:   true,
			wantIDs:  []SequenceID{11, 2, 3},
			wantData: []string{"g", "b", "c"},
		},
		{
			name:     "stale expect is rejected",
			live:     abc,
			expect:   New(NewElement(7, []byte("a"))),
			update:   FromPayloads([]byte("x")),
			wantOK:   false,
			wantIDs:  []SequenceID{1, 2, 3},
			wantData: []string{"a", "b", "c"},
		},
		{
			name:     "same bytes different identity is rejected",
			live:     abc,
			expect:   New(NewElement(4, []byte("a")), NewElement(5, []byte("b"))),
			update:   FromPayloads([]byte("x")),
			wantOK:   false,
			wantIDs:  []SequenceID{1, 2, 3},
			wantData: []string{"a", "b", "c"},
		},
		{
			name:     "expect longer than live is rejected",
			live:     New(abc.At(0)),
			expect:   abc,
			update:   FromPayloads([]byte("x")),
			wantOK:   false,
			wantIDs:  []SequenceID{1},
			wantData: []string{"a"},
		},
		{
			name:     "empty expect prepends",
			live:     New(abc.At(2)),
			expect:   Empty(),
			update:   FromPayloads([]byte("x"), []byte("y")),
			wantOK:   true,
			wantIDs:  []SequenceID{11, 12, 3},
			wantData: []string{"x", "y", "c"},
		},
		{
			name:     "empty update drops prefix",
			live:     abc,
			expect:   New(abc.At(0), abc.At(1)),
			update:   Empty(),
			wantOK:   true,
			wantIDs:  []SequenceID{3},
			wantData: []string{"c"},
		},
		{
			name:     "empty everything",
			live:     Empty(),
			expect:   Empty(),
			update:   Empty(),
			wantOK:   true,
			wantIDs:  []SequenceID{},
			wantData: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ReplaceHead(tt.live, tt.expect, tt.update, counter(10))
			if ok != tt.wantOK {
				t.Errorf("ReplaceHead() ok = %v, want %v", ok, tt.wantOK)
			}
			if ids := got.IDs(); !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("ReplaceHead() ids = %v, want %v", ids, tt.wantIDs)
			}
			if data := payloads(got); !reflect.DeepEqual(data, tt.wantData) {
				t.Errorf("ReplaceHead() payloads = %v, want %v", data, tt.wantData)
			}
		})
	}

	// the input chain is never modified
	if ids := abc.IDs(); !reflect.DeepEqual(ids, []SequenceID{1, 2, 3}) {
		t.Errorf("ReplaceHead() modified live chain: %v", ids)
	}
}

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		chain Chain
	}{
		{name: "empty", chain: Empty()},
		{name: "single", chain: New(NewElement(1, []byte("a")))},
		{name: "empty payload", chain: New(NewElement(3, nil), NewElement(4, []byte{}))},
		{name: "binary", chain: New(NewElement(1<<40, []byte{0, 1, 2, 255}), NewElement(1<<41, bytes.Repeat([]byte{7}, 1024)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := Encode(tt.chain)
			if len(data) != EncodedSize(tt.chain) {
				t.Errorf("len(Encode()) = %d, want %d", len(data), EncodedSize(tt.chain))
			}
			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !got.Equal(tt.chain) {
				t.Errorf("Decode(Encode()) = %v, want %v", got.IDs(), tt.chain.IDs())
			}

			ids, n, err := DecodeIDs(EncodeIDs(tt.chain))
			if err != nil {
				t.Fatalf("DecodeIDs() error = %v", err)
			}
			if n != 4+8*tt.chain.Len() {
				t.Errorf("DecodeIDs() consumed %d bytes", n)
			}
			if !reflect.DeepEqual(ids, tt.chain.IDs()) {
				t.Errorf("DecodeIDs() = %v, want %v", ids, tt.chain.IDs())
			}
		})
	}
}

func TestDecodeCorrupt(t *testing.T) {
	valid := Encode(New(NewElement(1, []byte("abc"))))

	tests := []struct {
		name string
		data []byte
	}{
		{name: "short count", data: []byte{0, 0}},
		{name: "count too large", data: []byte{0, 0, 0, 9}},
		{name: "truncated payload", data: valid[:len(valid)-1]},
		{name: "trailing bytes", data: append(append([]byte{}, valid...), 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, ErrCorrupt) {
				t.Errorf("Decode() error = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestFromIDs(t *testing.T) {
	live := New(NewElement(3, []byte("a")), NewElement(4, []byte("b")), NewElement(9, []byte("c")))

	ids, _, err := DecodeIDs(EncodeIDs(New(live.At(0), live.At(1))))
	if err != nil {
		t.Fatalf("DecodeIDs() error = %v", err)
	}
	expect := FromIDs(ids)
	if got, want := expect.IDs(), []SequenceID{3, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("FromIDs().IDs() = %v, want %v", got, want)
	}
	if n := len(expect.At(0).Payload()); n != 0 {
		t.Errorf("FromIDs() payload length = %d, want 0", n)
	}

	// identity matching ignores the missing payloads
	got, ok := ReplaceHead(live, expect, FromPayloads([]byte("d")), counter(9))
	if !ok {
		t.Fatalf("ReplaceHead() ok = false, want true")
	}
	if want := []string{"d", "c"}; !reflect.DeepEqual(payloads(got), want) {
		t.Errorf("ReplaceHead() payloads = %v, want %v", payloads(got), want)
	}
	if !FromIDs(nil).IsEmpty() {
		t.Errorf("FromIDs(nil).IsEmpty() = false, want true")
	}
}
