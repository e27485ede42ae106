package column

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"relfit/internal/engineerr"
)

// Binary layout (spec.md §6): a single endian-hint byte, then
// [u64 length][length x element][u64 len, name bytes][u64 len, unit
// bytes]. Elements are 8-byte IEEE-754 for float64, 8-byte two's
// complement for int64, and [u64 len, utf8 bytes] for string. New writes
// are always little-endian (see SPEC_FULL.md §9); the endian-hint byte
// lets Load invert byte order when reading a legacy big-endian file.
const (
	endianLittle byte = 0
	endianBig    byte = 1
)

func byteOrderFor(hint byte) binary.ByteOrder {
	if hint == endianBig {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Save writes c's binary representation to w.
func (c *Column[T]) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write([]byte{endianLittle}); err != nil {
		return engineerr.Wrap(engineerr.IoError, err, "write endian hint")
	}
	order := binary.LittleEndian

	if err := binary.Write(bw, order, uint64(len(c.data))); err != nil {
		return engineerr.Wrap(engineerr.IoError, err, "write length")
	}
	for _, v := range c.data {
		if err := writeElem(bw, order, v); err != nil {
			return engineerr.Wrap(engineerr.IoError, err, "write element")
		}
	}
	if err := writeString(bw, order, c.name); err != nil {
		return engineerr.Wrap(engineerr.IoError, err, "write name")
	}
	if err := writeString(bw, order, c.unit); err != nil {
		return engineerr.Wrap(engineerr.IoError, err, "write unit")
	}
	return bw.Flush()
}

func writeElem[T Type](w io.Writer, order binary.ByteOrder, v T) error {
	switch x := any(v).(type) {
	case float64:
		return binary.Write(w, order, math.Float64bits(x))
	case int64:
		return binary.Write(w, order, uint64(x))
	case string:
		return writeString(w, order, x)
	}
	return nil
}

func writeString(w io.Writer, order binary.ByteOrder, s string) error {
	if err := binary.Write(w, order, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// Load reads a Column previously written by Save (or a legacy
// big-endian file sharing the same layout) from r.
func Load[T Type](r io.Reader) (*Column[T], error) {
	br := bufio.NewReader(r)
	hintBuf := make([]byte, 1)
	if _, err := io.ReadFull(br, hintBuf); err != nil {
		return nil, engineerr.Wrap(engineerr.IoError, err, "read endian hint")
	}
	order := byteOrderFor(hintBuf[0])

	var length uint64
	if err := binary.Read(br, order, &length); err != nil {
		return nil, engineerr.Wrap(engineerr.IoError, err, "read length")
	}
	data := make([]T, length)
	for i := range data {
		v, err := readElem[T](br, order)
		if err != nil {
			return nil, engineerr.Wrap(engineerr.IoError, err, "read element")
		}
		data[i] = v
	}
	name, err := readString(br, order)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.IoError, err, "read name")
	}
	unit, err := readString(br, order)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.IoError, err, "read unit")
	}
	c := New(name, data)
	c.unit = unit
	return c, nil
}

func readElem[T Type](r io.Reader, order binary.ByteOrder) (T, error) {
	var zero T
	switch any(zero).(type) {
	case float64:
		var bits uint64
		if err := binary.Read(r, order, &bits); err != nil {
			return zero, err
		}
		return any(math.Float64frombits(bits)).(T), nil
	case int64:
		var bits uint64
		if err := binary.Read(r, order, &bits); err != nil {
			return zero, err
		}
		return any(int64(bits)).(T), nil
	case string:
		s, err := readString(r, order)
		if err != nil {
			return zero, err
		}
		return any(s).(T), nil
	}
	return zero, nil
}

func readString(r io.Reader, order binary.ByteOrder) (string, error) {
	var length uint64
	if err := binary.Read(r, order, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
