package ramtrace

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/zkmemsim/datarecording"
)

// ErrNonContiguousID is returned when an op does not carry the next id of
// the trace.
var ErrNonContiguousID = errors.New("op ids are not contiguous")

// ErrNotResettable is returned by Reset when the binary sink cannot seek.
var ErrNotResettable = errors.New("trace sink cannot be rewound")

// OpsTable is the table that receives every op when a data recorder is
// attached.
const OpsTable = "ram_ops"

// An OpEntry is one row of OpsTable. Dependencies are comma separated.
type OpEntry struct {
	ID           uint64
	Addr         uint64
	FetchType    string
	Delay        uint32
	Size         uint32
	Dependencies string
}

// A Writer appends ops to a request trace. It keeps the ids of the last two
// read and write batches so that consecutive batches can be chained.
type Writer struct {
	sink   io.Writer
	bin    *bufio.Writer
	text   io.Writer
	record datarecording.DataRecorder

	executable string
	configPath string

	numCurrentOps      uint64
	opCount            uint64
	penultimateReadID  int64
	penultimateWriteID int64
	lastReadID         int64
	lastWriteID        int64
	sizes              histogram
}

// Builder creates Writers.
type Builder struct {
	text       io.Writer
	recorder   datarecording.DataRecorder
	executable string
	configPath string
}

// MakeBuilder creates a Builder with no text mirror, no recorder and no RAM
// simulator.
func MakeBuilder() Builder {
	return Builder{}
}

// WithTextOutput mirrors every op in human-readable form.
func (b Builder) WithTextOutput(w io.Writer) Builder {
	b.text = w
	return b
}

// WithDataRecorder records every op in the ram_ops table.
func (b Builder) WithDataRecorder(r datarecording.DataRecorder) Builder {
	b.recorder = r
	return b
}

// WithSimulator sets the RAM simulator executable and its configuration
// file.
func (b Builder) WithSimulator(executable, configPath string) Builder {
	b.executable = executable
	b.configPath = configPath

	return b
}

// Build creates a Writer over the binary sink and writes the trace header.
func (b Builder) Build(sink io.Writer) (*Writer, error) {
	w := &Writer{
		sink:       sink,
		bin:        bufio.NewWriter(sink),
		text:       b.text,
		record:     b.recorder,
		executable: b.executable,
		configPath: b.configPath,
	}

	w.resetCounters()

	if w.record != nil {
		w.record.CreateTable(OpsTable, OpEntry{})
	}

	_, err := w.bin.Write(magicWord[:])
	if err != nil {
		return nil, err
	}

	return w, nil
}

func (w *Writer) resetCounters() {
	w.numCurrentOps = 0
	w.opCount = 0
	w.penultimateReadID = -2
	w.penultimateWriteID = -2
	w.lastReadID = -1
	w.lastWriteID = -1
	w.sizes = make(histogram)
}

// NumOps returns the number of ops written since the last reset.
func (w *Writer) NumOps() uint64 {
	return w.opCount
}

// AddTrace appends a batch. The ids and dependencies of the batch start at 0
// and are shifted behind the ops already written. Every read also waits for
// the last write of the batch before the previous one, which bounds the
// number of batches in flight to two. A batch that fails to write leaves
// the chaining state untouched.
func (w *Writer) AddTrace(reads, writes []OpRecord) error {
	batch := make([]OpRecord, 0, len(reads)+len(writes))

	for _, op := range reads {
		batch = append(batch, w.rebase(op))
	}

	for _, op := range writes {
		batch = append(batch, w.rebase(op))
	}

	if w.penultimateWriteID >= 0 {
		for i := range reads {
			batch[i].Dependencies = append(batch[i].Dependencies,
				uint64(w.penultimateWriteID))
		}
	}

	err := w.WriteTrace(batch)
	if err != nil {
		return err
	}

	w.numCurrentOps += uint64(len(batch))

	if len(writes) > 0 {
		w.penultimateWriteID = w.lastWriteID
		w.lastWriteID = int64(batch[len(batch)-1].ID)
	}

	if len(reads) > 0 {
		w.penultimateReadID = w.lastReadID
		w.lastReadID = int64(batch[len(reads)-1].ID)
	}

	return nil
}

func (w *Writer) rebase(op OpRecord) OpRecord {
	op = op.clone()
	op.ID += w.numCurrentOps

	for i := range op.Dependencies {
		op.Dependencies[i] += w.numCurrentOps
	}

	return op
}

// WriteTrace appends ops as they are. The ids must continue the trace.
func (w *Writer) WriteTrace(ops []OpRecord) error {
	for i, op := range ops {
		if op.ID != w.opCount+uint64(i) {
			return fmt.Errorf("%w: got id %d, want %d",
				ErrNonContiguousID, op.ID, w.opCount+uint64(i))
		}
	}

	var buf []byte
	for _, op := range ops {
		buf = encodeOp(buf[:0], op)

		_, err := w.bin.Write(buf)
		if err != nil {
			return err
		}

		w.opCount++
		w.sizes.add(op.Size)
	}

	if w.text != nil {
		for _, op := range ops {
			_, err := io.WriteString(w.text, op.String())
			if err != nil {
				return err
			}
		}
	}

	if w.record != nil {
		for _, op := range ops {
			w.record.InsertData(OpsTable, toEntry(op))
		}
	}

	return nil
}

func toEntry(op OpRecord) OpEntry {
	deps := make([]string, len(op.Dependencies))
	for i, d := range op.Dependencies {
		deps[i] = fmt.Sprint(d)
	}

	return OpEntry{
		ID:           op.ID,
		Addr:         op.Addr,
		FetchType:    op.FetchType.String(),
		Delay:        op.Delay,
		Size:         op.Size,
		Dependencies: strings.Join(deps, ","),
	}
}

// Summary returns the size histogram of the ops written since the last
// reset.
func (w *Writer) Summary() Summary {
	return w.sizes.summary()
}

// Flush pushes buffered ops to the sinks.
func (w *Writer) Flush() error {
	if w.record != nil {
		w.record.Flush()
	}

	return w.bin.Flush()
}

type truncater interface {
	Truncate(size int64) error
}

// Reset starts a new trace in the same sinks. The binary sink must be an
// io.Seeker. Sinks that can be truncated, such as files, are truncated.
func (w *Writer) Reset() error {
	seeker, ok := w.sink.(io.Seeker)
	if !ok {
		return ErrNotResettable
	}

	err := w.bin.Flush()
	if err != nil {
		return err
	}

	err = rewind(w.sink, seeker)
	if err != nil {
		return err
	}

	if s, ok := w.text.(io.Seeker); ok {
		err = rewind(w.text, s)
		if err != nil {
			return err
		}
	}

	w.resetCounters()
	w.bin.Reset(w.sink)

	_, err = w.bin.Write(magicWord[:])

	return err
}

func rewind(sink any, seeker io.Seeker) error {
	if t, ok := sink.(truncater); ok {
		err := t.Truncate(0)
		if err != nil {
			return err
		}
	}

	_, err := seeker.Seek(0, io.SeekStart)

	return err
}

// Run flushes the trace and runs the RAM simulator on it. The simulator's
// standard output goes to log.
func (w *Writer) Run(ctx context.Context, log io.Writer) error {
	if w.executable == "" {
		return errors.New("no RAM simulator configured")
	}

	err := w.Flush()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, w.executable, "-f", w.configPath)
	cmd.Stdout = log

	logrus.Infof("Running %s -f %s", w.executable, w.configPath)

	err = cmd.Run()
	if err != nil {
		return fmt.Errorf("running RAM simulator: %w", err)
	}

	return nil
}
