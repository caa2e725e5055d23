package packstream

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encoder serializes Values to a byte sink, grounded on the other_examples
// PackStream Packer: a thin wrapper that appends marker and payload bytes in
// sequence, picking the narrowest on-wire width for every sized type.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with an empty internal buffer.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns everything written so far.
func (e *Encoder) Bytes() []byte { return e.buf }

// Reset discards everything written so far so the Encoder can be reused.
func (e *Encoder) Reset() { e.buf = e.buf[:0] }

// Encode appends v's wire representation to the encoder's buffer.
func (e *Encoder) Encode(v Value) error {
	switch v.Kind() {
	case KindNull:
		e.writeByte(markerNull)
		return nil
	case KindBoolean:
		b, _ := v.AsBool()
		if b {
			e.writeByte(markerTrue)
		} else {
			e.writeByte(markerFalse)
		}
		return nil
	case KindInteger:
		i, _ := v.AsInt()
		return e.encodeInt(i)
	case KindFloat:
		f, _ := v.AsFloat()
		e.writeByte(markerFloat64)
		e.writeUint64(math.Float64bits(f))
		return nil
	case KindBytes:
		b, _ := v.AsBytes()
		return e.encodeBytes(b)
	case KindString:
		s, _ := v.AsString()
		return e.encodeString(s)
	case KindList:
		items, _ := v.AsList()
		return e.encodeList(items)
	case KindDictionary:
		entries, _ := v.AsDict()
		return e.encodeDict(entries)
	case KindStructure:
		s, _ := v.AsStructure()
		return e.encodeStructure(s)
	default:
		return fmt.Errorf("packstream: encode: unrecognized kind %v", v.Kind())
	}
}

// EncodeValue is a convenience wrapper returning freshly encoded bytes.
func EncodeValue(v Value) ([]byte, error) {
	enc := NewEncoder()
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	out := make([]byte, len(enc.Bytes()))
	copy(out, enc.Bytes())
	return out, nil
}

func (e *Encoder) encodeInt(i int64) error {
	switch {
	case i >= tinyIntMin && i <= tinyIntMax:
		e.writeByte(byte(i))
	case i >= int8Min && i <= int8Max:
		e.writeByte(markerInt8)
		e.writeByte(byte(i))
	case i >= int16Min && i <= int16Max:
		e.writeByte(markerInt16)
		e.writeUint16(uint16(i))
	case i >= int32Min && i <= int32Max:
		e.writeByte(markerInt32)
		e.writeUint32(uint32(i))
	default:
		e.writeByte(markerInt64)
		e.writeUint64(uint64(i))
	}
	return nil
}

func (e *Encoder) encodeBytes(b []byte) error {
	n := len(b)
	switch {
	case n < 1<<8:
		e.writeByte(markerBytes8)
		e.writeByte(byte(n))
	case n < 1<<16:
		e.writeByte(markerBytes16)
		e.writeUint16(uint16(n))
	case n < 1<<31:
		e.writeByte(markerBytes32)
		e.writeUint32(uint32(n))
	default:
		return fmt.Errorf("packstream: encode: bytes too large (%d)", n)
	}
	e.buf = append(e.buf, b...)
	return nil
}

func (e *Encoder) encodeString(s string) error {
	n := len(s)
	switch {
	case n < 16:
		e.writeByte(tinyStringBase | byte(n))
	case n < 1<<8:
		e.writeByte(markerString8)
		e.writeByte(byte(n))
	case n < 1<<16:
		e.writeByte(markerString16)
		e.writeUint16(uint16(n))
	case n < 1<<31:
		e.writeByte(markerString32)
		e.writeUint32(uint32(n))
	default:
		return fmt.Errorf("packstream: encode: string too large (%d bytes)", n)
	}
	e.buf = append(e.buf, s...)
	return nil
}

func (e *Encoder) encodeList(items []Value) error {
	n := len(items)
	switch {
	case n < 16:
		e.writeByte(tinyListBase | byte(n))
	case n < 1<<8:
		e.writeByte(markerList8)
		e.writeByte(byte(n))
	case n < 1<<16:
		e.writeByte(markerList16)
		e.writeUint16(uint16(n))
	case n < 1<<31:
		e.writeByte(markerList32)
		e.writeUint32(uint32(n))
	default:
		return fmt.Errorf("packstream: encode: list too large (%d)", n)
	}
	for _, item := range items {
		if err := e.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeDict(entries []DictEntry) error {
	n := len(entries)
	switch {
	case n < 16:
		e.writeByte(tinyDictBase | byte(n))
	case n < 1<<8:
		e.writeByte(markerDict8)
		e.writeByte(byte(n))
	case n < 1<<16:
		e.writeByte(markerDict16)
		e.writeUint16(uint16(n))
	case n < 1<<31:
		e.writeByte(markerDict32)
		e.writeUint32(uint32(n))
	default:
		return fmt.Errorf("packstream: encode: dictionary too large (%d)", n)
	}
	for _, entry := range entries {
		if err := e.encodeString(entry.Key); err != nil {
			return err
		}
		if err := e.Encode(entry.Value); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeStructure(s Structure) error {
	if len(s.Fields) > maxFieldCount {
		return fmt.Errorf("packstream: encode: structure field count %d exceeds %d", len(s.Fields), maxFieldCount)
	}
	e.writeByte(tinyStructBase | byte(len(s.Fields)))
	e.writeByte(s.Tag)
	for _, f := range s.Fields {
		if err := e.Encode(f); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeByte(b byte) { e.buf = append(e.buf, b) }

func (e *Encoder) writeUint16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

func (e *Encoder) writeUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

func (e *Encoder) writeUint64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}
