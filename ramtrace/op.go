// Package ramtrace writes the request trace consumed by the external RAM
// timing simulator.
//
// The binary trace starts with the magic word "BINFILE" padded to 8 bytes.
// Every op follows as a sequence of 8-byte little-endian slots: id, address,
// fetch type, delay, size, the number of dependencies and one slot per
// dependency.
package ramtrace

import (
	"fmt"
	"strings"

	"github.com/sarchlab/zkmemsim/mem/traffic"
)

// RequestSize is the size of one request line of the RAM in bytes.
const RequestSize = 64

const slotSize = 8

var magicWord = [slotSize]byte{'B', 'I', 'N', 'F', 'I', 'L', 'E', 0}

// OpRecord is one memory request. Dependencies list the ids of the ops that
// must complete before this op is issued.
type OpRecord struct {
	ID           uint64
	Addr         uint64
	FetchType    traffic.FetchType
	Delay        uint32
	Dependencies []uint64
	Size         uint32
}

func (op OpRecord) clone() OpRecord {
	op.Dependencies = append([]uint64(nil), op.Dependencies...)
	return op
}

func (op OpRecord) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "id: %d\n", op.ID)
	fmt.Fprintf(&b, "addr: %d\n", op.Addr)
	fmt.Fprintf(&b, "fetch_type: %s\n", op.FetchType)
	fmt.Fprintf(&b, "delay: %d\n", op.Delay)
	fmt.Fprintf(&b, "size: %d\n", op.Size)
	b.WriteString("dependencies: ")

	for _, dep := range op.Dependencies {
		fmt.Fprintf(&b, "%d, ", dep)
	}

	b.WriteString("\n")

	return b.String()
}
