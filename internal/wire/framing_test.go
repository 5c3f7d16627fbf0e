package wire

import (
	"bytes"
	"io"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := Request{SQL: "SELECT * FROM Person"}
	if err := writeFrame(&buf, req); err != nil {
		t.Fatalf("write: %v", err)
	}
	var got Request
	if err := readFrame(&buf, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.SQL != req.SQL {
		t.Fatalf("got %q, want %q", got.SQL, req.SQL)
	}
}

func TestReadFrameReturnsUnwrappedEOFOnCleanDisconnect(t *testing.T) {
	var got Request
	if err := readFrame(bytes.NewReader(nil), &got); err != io.EOF {
		t.Fatalf("expected bare io.EOF on a clean disconnect, got %v", err)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	lenBuf := []byte{0x7f, 0xff, 0xff, 0xff} // huge length, no body follows
	buf.Write(lenBuf)
	var got Request
	if err := readFrame(&buf, &got); err == nil {
		t.Fatal("expected error for frame length exceeding the maximum")
	}
}

func TestResponseMarshalsNullDataForNonSelect(t *testing.T) {
	resp := okResponse(nil)
	if resp.Successful != 0 || resp.Error != nil || resp.Data != nil {
		t.Fatalf("got %+v", resp)
	}
}

func TestErrResponseCarriesCodeAndMessage(t *testing.T) {
	resp := errResponse(2, "schema error: unknown table")
	if resp.Successful != 2 || resp.Error == nil || *resp.Error != "schema error: unknown table" {
		t.Fatalf("got %+v", resp)
	}
}
