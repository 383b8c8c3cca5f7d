package ramtrace

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/zkmemsim/mem/traffic"
)

// ErrBadMagic is returned when a binary trace does not start with the magic
// word.
var ErrBadMagic = errors.New("not a binary request trace")

func appendSlot(buf []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(buf, v)
}

func encodeOp(buf []byte, op OpRecord) []byte {
	buf = appendSlot(buf, op.ID)
	buf = appendSlot(buf, op.Addr)
	buf = appendSlot(buf, uint64(op.FetchType))
	buf = appendSlot(buf, uint64(op.Delay))
	buf = appendSlot(buf, uint64(op.Size))
	buf = appendSlot(buf, uint64(len(op.Dependencies)))

	for _, dep := range op.Dependencies {
		buf = appendSlot(buf, dep)
	}

	return buf
}

// Decode reads a binary trace back into op records.
func Decode(r io.Reader) ([]OpRecord, error) {
	br := bufio.NewReader(r)

	var header [slotSize]byte

	_, err := io.ReadFull(br, header[:])
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	if header != magicWord {
		return nil, ErrBadMagic
	}

	var ops []OpRecord

	for {
		op, err := decodeOp(br)
		if errors.Is(err, io.EOF) {
			return ops, nil
		}

		if err != nil {
			return nil, fmt.Errorf("reading op %d: %w", len(ops), err)
		}

		ops = append(ops, op)
	}
}

func decodeOp(r io.Reader) (OpRecord, error) {
	var (
		slot [slotSize]byte
		op   OpRecord
	)

	next := func() (uint64, error) {
		_, err := io.ReadFull(r, slot[:])
		return binary.LittleEndian.Uint64(slot[:]), err
	}

	id, err := next()
	if err != nil {
		// A clean EOF before a new op ends the trace.
		return op, err
	}

	fields := make([]uint64, 5)
	for i := range fields {
		fields[i], err = next()
		if err != nil {
			return op, io.ErrUnexpectedEOF
		}
	}

	op = OpRecord{
		ID:        id,
		Addr:      fields[0],
		FetchType: traffic.FetchType(fields[1]),
		Delay:     uint32(fields[2]),
		Size:      uint32(fields[3]),
	}

	numDeps := fields[4]
	for range numDeps {
		dep, err := next()
		if err != nil {
			return op, io.ErrUnexpectedEOF
		}

		op.Dependencies = append(op.Dependencies, dep)
	}

	return op, nil
}
