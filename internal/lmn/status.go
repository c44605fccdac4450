package lmn

// Status is a snapshot of a port's health: whether it is
// currently open and how many bytes have been read from it so far.
type Status struct {
	Open      bool
	BytesRead uint64
}

// Status returns the port's current status.
func (p *Port) Status() Status {
	return Status{
		Open:      p.open.Load(),
		BytesRead: p.bytesRead.Load(),
	}
}
