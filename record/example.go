package record

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
	"math"
	"sort"
)

// Feature holds one named value list of an Example. Only one of the lists is normally set.
type Feature struct {
	Bytes  [][]byte
	Floats []float32
	Ints   []int64
}

// Example is a set of named features, encoded with the same wire format as a tf.train.Example message:
//
//	Example   { Features features = 1; }
//	Features  { map<string, Feature> feature = 1; }
//	Feature   { oneof { BytesList bytes_list = 1; FloatList float_list = 2; Int64List int64_list = 3; } }
type Example map[string]Feature

// Marshal encodes the example, features are written in key order.
func (e Example) Marshal() []byte {
	keys := make([]string, 0, len(e))
	for key := range e {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var features []byte
	for _, key := range keys {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, key)
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendBytes(entry, e[key].marshal())
		features = protowire.AppendTag(features, 1, protowire.BytesType)
		features = protowire.AppendBytes(features, entry)
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	return protowire.AppendBytes(b, features)
}

func (f Feature) marshal() []byte {
	var list []byte
	var field protowire.Number
	switch {
	case f.Floats != nil:
		field = 2
		packed := make([]byte, 0, 4*len(f.Floats))
		for _, v := range f.Floats {
			packed = protowire.AppendFixed32(packed, math.Float32bits(v))
		}
		list = protowire.AppendTag(list, 1, protowire.BytesType)
		list = protowire.AppendBytes(list, packed)
	case f.Ints != nil:
		field = 3
		var packed []byte
		for _, v := range f.Ints {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		list = protowire.AppendTag(list, 1, protowire.BytesType)
		list = protowire.AppendBytes(list, packed)
	default:
		field = 1
		for _, v := range f.Bytes {
			list = protowire.AppendTag(list, 1, protowire.BytesType)
			list = protowire.AppendBytes(list, v)
		}
	}
	var b []byte
	b = protowire.AppendTag(b, field, protowire.BytesType)
	return protowire.AppendBytes(b, list)
}

// UnmarshalExample decodes an encoded example. Byte values alias the input slice.
func UnmarshalExample(b []byte) (Example, error) {
	e := make(Example)
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != 1 || typ != protowire.BytesType {
			return nil
		}
		return walk(v, func(num protowire.Number, typ protowire.Type, v []byte) error {
			if num != 1 || typ != protowire.BytesType {
				return nil
			}
			key, feat, err := unmarshalEntry(v)
			if err != nil {
				return err
			}
			e[key] = feat
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "error decoding example")
	}
	return e, nil
}

func unmarshalEntry(b []byte) (key string, feat Feature, err error) {
	err = walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case 1:
			key = string(v)
		case 2:
			feat, err = unmarshalFeature(v)
			return err
		}
		return nil
	})
	return key, feat, err
}

func unmarshalFeature(b []byte) (Feature, error) {
	var f Feature
	err := walk(b, func(kind protowire.Number, typ protowire.Type, list []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		return walk(list, func(num protowire.Number, typ protowire.Type, v []byte) error {
			if num != 1 {
				return nil
			}
			switch kind {
			case 1:
				if typ == protowire.BytesType {
					f.Bytes = append(f.Bytes, v)
				}
			case 2:
				return appendFloats(&f, typ, v)
			case 3:
				return appendInts(&f, typ, v)
			}
			return nil
		})
	})
	return f, err
}

func appendFloats(f *Feature, typ protowire.Type, v []byte) error {
	switch typ {
	case protowire.Fixed32Type:
		x, n := protowire.ConsumeFixed32(v)
		if n < 0 {
			return protowire.ParseError(n)
		}
		f.Floats = append(f.Floats, math.Float32frombits(x))
	case protowire.BytesType:
		if len(v)%4 != 0 {
			return errors.Errorf("invalid packed float list length %d", len(v))
		}
		if f.Floats == nil {
			f.Floats = make([]float32, 0, len(v)/4)
		}
		for len(v) > 0 {
			x, n := protowire.ConsumeFixed32(v)
			f.Floats = append(f.Floats, math.Float32frombits(x))
			v = v[n:]
		}
	}
	return nil
}

func appendInts(f *Feature, typ protowire.Type, v []byte) error {
	switch typ {
	case protowire.VarintType:
		x, n := protowire.ConsumeVarint(v)
		if n < 0 {
			return protowire.ParseError(n)
		}
		f.Ints = append(f.Ints, int64(x))
	case protowire.BytesType:
		for len(v) > 0 {
			x, n := protowire.ConsumeVarint(v)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.Ints = append(f.Ints, int64(x))
			v = v[n:]
		}
	}
	return nil
}

// walk calls fn for each field in a message. For fixed width and varint fields v holds the raw encoded value.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		var v []byte
		if typ == protowire.BytesType {
			v, n = protowire.ConsumeBytes(b)
		} else {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n >= 0 {
				v = b[:n]
			}
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if err := fn(num, typ, v); err != nil {
			return err
		}
	}
	return nil
}
