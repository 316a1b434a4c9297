package handler

import "github.com/openxch/coinhandler/lib/coin"

// FetchFunc produces the next batch of at most batch deposits from a backend. It returns the batch, whether more
// batches may follow, and any backend failure. The function keeps its own cursor between calls.
type FetchFunc func(batch int) ([]coin.Deposit, bool, error)

// Stream is a pull cursor over normalised deposits. Usage follows the database cursor pattern:
//
//	st := loader.ListTxs(100)
//	defer st.Close()
//	for st.Next() {
//	    d := st.Deposit()
//	    ...
//	}
//	if err := st.Err(); err != nil { ... }
//
// The stream never materialises more than one batch in memory. Abandoning iteration early is allowed; Close
// releases any backend session and is idempotent. A stream that runs to exhaustion releases the session itself.
type Stream struct {
	fetch   FetchFunc
	release func()
	batch   int

	buf    []coin.Deposit
	cur    coin.Deposit
	more   bool
	err    error
	closed bool
}

// NewStream returns a Stream over fetch. release, if non-nil, is invoked exactly once when the stream is closed or
// exhausted, on every exit path.
func NewStream(batch int, fetch FetchFunc, release func()) *Stream {
	return &Stream{fetch: fetch, release: release, batch: batch, more: true}
}

// Next advances to the next deposit, fetching a new batch when the buffer is empty. It returns false once the
// stream is exhausted, failed or closed; check Err afterwards.
func (s *Stream) Next() bool {
	if s.closed || s.err != nil {
		return false
	}

	for len(s.buf) == 0 {
		if !s.more {
			s.Close()

			return false
		}

		s.buf, s.more, s.err = s.fetch(s.batch)
		if s.err != nil {
			s.Close()

			return false
		}
	}

	s.cur = s.buf[0]
	s.buf = s.buf[1:]

	return true
}

// Deposit returns the deposit produced by the last successful Next.
func (s *Stream) Deposit() coin.Deposit {
	return s.cur
}

// Err returns the first backend failure encountered, if any.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the backend session. Safe to call more than once.
func (s *Stream) Close() {
	if s.closed {
		return
	}

	s.closed = true

	if s.release != nil {
		s.release()
	}
}
