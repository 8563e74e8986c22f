package proc

import "os"

// pipePair is one OS pipe: read end and write end, close-on-exec.
type pipePair struct {
	r, w *os.File
}

// PipeSet owns the N-1 pipes connecting an N-stage pipeline. Pipe i
// connects stage i's stdout to stage i+1's stdin.
type PipeSet struct {
	pairs  []pipePair
	closed bool
}

// NewPipeSet allocates the pipes for a pipeline of n stages. For n <= 1
// it returns an empty set. If any allocation fails partway, every pipe
// opened so far is closed and the error is returned; a partial set is
// never handed back.
//
// os.Pipe uses pipe2(O_CLOEXEC) where available, so the descriptors never
// leak across an exec.
func NewPipeSet(n int) (*PipeSet, error) {
	ps := &PipeSet{}
	if n <= 1 {
		return ps, nil
	}

	for i := 0; i < n-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			ps.CloseAll()
			return nil, err
		}
		ps.pairs = append(ps.pairs, pipePair{r: r, w: w})
	}
	return ps, nil
}

// Len returns the number of pipes in the set.
func (ps *PipeSet) Len() int {
	return len(ps.pairs)
}

// ReadEnd returns the read end of pipe i (stage i+1's stdin).
func (ps *PipeSet) ReadEnd(i int) *os.File {
	return ps.pairs[i].r
}

// WriteEnd returns the write end of pipe i (stage i's stdout).
func (ps *PipeSet) WriteEnd(i int) *os.File {
	return ps.pairs[i].w
}

// CloseAll closes every descriptor in the set. Later calls are no-ops so
// cleanup paths cannot double-close.
func (ps *PipeSet) CloseAll() {
	if ps == nil || ps.closed {
		return
	}
	ps.closed = true
	for _, p := range ps.pairs {
		if p.r != nil {
			p.r.Close()
		}
		if p.w != nil {
			p.w.Close()
		}
	}
}
