package packet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

var (
	// ErrTruncatedHeader means a buffer ended inside a frame header, or
	// the header's length fields are inconsistent with the wire format.
	ErrTruncatedHeader = errors.New("packet: truncated frame header")

	// ErrTruncatedBody means a buffer ended inside a frame body.
	ErrTruncatedBody = errors.New("packet: truncated frame body")

	// ErrDecompress means a compressed frame body was not a valid zlib
	// stream.
	ErrDecompress = errors.New("packet: decompression failed")

	// ErrFrameTooLarge means a header announced a total length beyond
	// MaxFrameSize. Nothing in the upstream protocol comes close to the
	// limit, so such a header means the stream is corrupt.
	ErrFrameTooLarge = errors.New("packet: frame exceeds size limit")
)

// MaxFrameSize caps the total length a frame header may announce. It
// bounds what ReadFrame will allocate from an untrusted header.
const MaxFrameSize = 16 << 20

// Encode builds the wire bytes for a single plain frame carrying body.
// The sequence field is always emitted as 1; the upstream protocol never
// increments it in this generation.
func Encode(op Op, body []byte) []byte {
	buf := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(HeaderSize+len(body)))
	binary.BigEndian.PutUint16(buf[4:6], HeaderSize)
	binary.BigEndian.PutUint16(buf[6:8], uint16(VersionPlain))
	binary.BigEndian.PutUint32(buf[8:12], uint32(op))
	binary.BigEndian.PutUint32(buf[12:16], 1)
	copy(buf[HeaderSize:], body)
	return buf
}

// Decode parses every frame in buf, recursively inflating compressed
// bodies and flattening their nested frames into the result in order.
// Decode is all-or-nothing: any header, length, or zlib failure aborts
// the whole call and no partial results are returned.
func Decode(buf []byte) ([]Message, error) {
	var msgs []Message
	if err := decodeInto(buf, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func decodeInto(buf []byte, out *[]Message) error {
	for len(buf) > 0 {
		frame, rest, err := split(buf)
		if err != nil {
			return err
		}
		if err := flattenInto(frame, out); err != nil {
			return err
		}
		buf = rest
	}
	return nil
}

// split parses one frame off the front of buf and returns the remainder.
func split(buf []byte) (*Frame, []byte, error) {
	if len(buf) < HeaderSize {
		return nil, nil, ErrTruncatedHeader
	}
	total := binary.BigEndian.Uint32(buf[0:4])
	hlen := binary.BigEndian.Uint16(buf[4:6])
	if hlen < HeaderSize || total < uint32(hlen) {
		return nil, nil, ErrTruncatedHeader
	}
	if total > MaxFrameSize {
		return nil, nil, ErrFrameTooLarge
	}
	bodyLen := int(total) - int(hlen)
	if len(buf) < int(hlen)+bodyLen {
		return nil, nil, ErrTruncatedBody
	}
	f := &Frame{
		Version:  Version(binary.BigEndian.Uint16(buf[6:8])),
		Op:       Op(binary.BigEndian.Uint32(buf[8:12])),
		Sequence: binary.BigEndian.Uint32(buf[12:16]),
		Body:     buf[int(hlen) : int(hlen)+bodyLen],
	}
	return f, buf[int(hlen)+bodyLen:], nil
}

// Messages flattens one frame into its logical messages: a single pair
// for a plain frame, the recursively decoded contents for a compressed
// one.
func (f *Frame) Messages() ([]Message, error) {
	var msgs []Message
	if err := flattenInto(f, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func flattenInto(f *Frame, out *[]Message) error {
	if f.Version != VersionCompressed {
		*out = append(*out, Message{Op: f.Op, Body: f.Body})
		return nil
	}
	inflated, err := inflate(f.Body)
	if err != nil {
		return err
	}
	return decodeInto(inflated, out)
}

func inflate(body []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	return out, nil
}

// ReadFrame reads exactly one frame from a stream: the fixed header via
// io.ReadFull, then the body length it announces. Transport errors pass
// through; a stream that ends mid-frame yields the matching codec error.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, ErrTruncatedHeader
		}
		return nil, err
	}
	total := binary.BigEndian.Uint32(header[0:4])
	hlen := binary.BigEndian.Uint16(header[4:6])
	if hlen < HeaderSize || total < uint32(hlen) {
		return nil, ErrTruncatedHeader
	}
	if total > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	// Headers longer than this generation's fixed 16 bytes carry their
	// extra bytes before the body; skip them.
	if extra := int(hlen) - HeaderSize; extra > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(extra)); err != nil {
			return nil, ErrTruncatedHeader
		}
	}
	body := make([]byte, int(total)-int(hlen))
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrTruncatedBody
		}
		return nil, err
	}
	return &Frame{
		Version:  Version(binary.BigEndian.Uint16(header[6:8])),
		Op:       Op(binary.BigEndian.Uint32(header[8:12])),
		Sequence: binary.BigEndian.Uint32(header[12:16]),
		Body:     body,
	}, nil
}
