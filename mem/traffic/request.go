package traffic

// A Request only counts the request lines of each stage. It keeps no
// addresses.
type Request struct {
	WordSize int
	NumLines []int
}

// NewRequest creates an empty Request.
func NewRequest() *Request {
	return &Request{
		WordSize: WordSize,
		NumLines: make([]int, 0),
	}
}

// Push appends a stage with one line per bank.
func (r *Request) Push(banks [][]uint64) {
	r.NumLines = append(r.NumLines, len(banks))
}

// Extend appends the stages of other.
func (r *Request) Extend(other *Request) {
	r.NumLines = append(r.NumLines, other.NumLines...)
}

// Len returns the number of stages.
func (r *Request) Len() int {
	return len(r.NumLines)
}

// NumRequestLines returns the number of lines over all stages.
func (r *Request) NumRequestLines() int {
	n := 0
	for _, l := range r.NumLines {
		n += l
	}

	return n
}

// Clear drops all stages.
func (r *Request) Clear() {
	r.NumLines = r.NumLines[:0]
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	return &Request{
		WordSize: r.WordSize,
		NumLines: append(make([]int, 0, len(r.NumLines)), r.NumLines...),
	}
}
