package helpers

import (
	"io"
)

// WriteAll pushes b through writers that accept partial chunks, like UART FIFO.
// Write making no progress is io.ErrShortWrite.
func WriteAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n <= 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}
