package transport

import "io"

// DialIO builds a Conn from a separate writer and reader pair.
func DialIO(out io.WriteCloser, in io.ReadCloser) (Conn, error) {
	return &ioduplex{out, in}, nil
}

type ioduplex struct {
	io.WriteCloser
	io.ReadCloser
}

func (d *ioduplex) Close() error {
	if err := d.WriteCloser.Close(); err != nil {
		return err
	}
	return d.ReadCloser.Close()
}
