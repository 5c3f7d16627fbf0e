// Package wire implements BongoDB's client/server wire protocol (§6): a
// 32-bit big-endian length-prefixed JSON frame carrying one Request or
// Response per round trip, and the Session Loop that reads a connection's
// frames, runs them through the Parser/Executor, and writes back
// Responses (§4.4).
package wire

import "github.com/SimonWaldherr/bongodb/internal/storage"

// Request is the client-to-server frame payload: raw SQL text.
type Request struct {
	SQL string `json:"sql"`
}

// Response is the server-to-client frame payload (§6 "Response").
//
// Successful: 0 = OK, 1 = parse/invalid-statement error, 2 = valid
// statement but execution failed.
type Response struct {
	Successful int             `json:"successful"`
	Error      *string         `json:"error"`
	Data       [][]storage.Value `json:"data"`
}

func okResponse(data [][]storage.Value) Response {
	return Response{Successful: 0, Error: nil, Data: data}
}

func errResponse(code int, msg string) Response {
	return Response{Successful: code, Error: &msg, Data: nil}
}
