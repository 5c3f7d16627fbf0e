package wire

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// maxFrameBytes bounds a single frame to guard against a corrupt or
// malicious length prefix forcing an unbounded allocation.
const maxFrameBytes = 64 << 20 // 64 MiB

// readFrame reads one 32-bit-BE-length-prefixed JSON frame from r and
// unmarshals it into v.
func readFrame(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		// A clean disconnect between frames surfaces as io.EOF (or
		// io.ErrUnexpectedEOF partway through the length prefix); the
		// session loop checks err == io.EOF to end the session quietly, so
		// that sentinel must not be wrapped away.
		if err == io.EOF {
			return io.EOF
		}
		return errors.Wrap(err, "read frame length")
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameBytes {
		return errors.Errorf("frame of %d bytes exceeds maximum of %d", n, maxFrameBytes)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return errors.Wrap(err, "read frame body")
	}
	if err := json.Unmarshal(buf, v); err != nil {
		return errors.Wrap(err, "parse frame JSON")
	}
	return nil
}

// writeFrame marshals v to JSON and writes it as one 32-bit-BE-length-
// prefixed frame to w.
func writeFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal frame JSON")
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "write frame length")
	}
	if _, err := w.Write(body); err != nil {
		return errors.Wrap(err, "write frame body")
	}
	return nil
}
