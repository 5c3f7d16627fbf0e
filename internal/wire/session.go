package wire

import (
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/SimonWaldherr/bongodb/internal/engine"
)

// Serve runs the Session Loop for one accepted connection: read one framed
// Request, parse it, execute it, write one framed Response, repeat until
// the connection errors or closes (§4.4). A malformed frame or parse
// failure reports successful=1; executor errors report successful=2.
// Disconnecting mid-statement does not cancel an in-flight statement —
// the statement the current iteration is running always completes before
// Serve observes the connection error and returns (§5 "Cancellation").
func Serve(conn net.Conn, ex *engine.Executor) {
	sessionID := uuid.NewString()
	logger := log.With().Str("session", sessionID).Str("remote", conn.RemoteAddr().String()).Logger()
	logger.Debug().Msg("session started")
	defer func() {
		conn.Close()
		logger.Debug().Msg("session ended")
	}()

	for {
		var req Request
		if err := readFrame(conn, &req); err != nil {
			if err == io.EOF {
				return
			}
			// A framing-level failure (bad length prefix, malformed JSON)
			// is reported like a parse error (successful=1) if the
			// connection is still writable; otherwise the session ends.
			if writeErr := writeFrame(conn, errResponse(1, err.Error())); writeErr != nil {
				return
			}
			continue
		}

		resp := handleStatement(ex, req.SQL, logger)
		if err := writeFrame(conn, resp); err != nil {
			return
		}
	}
}

func handleStatement(ex *engine.Executor, sql string, logger zerolog.Logger) Response {
	logger.Debug().Str("sql", sql).Msg("executing statement")

	stmt, err := engine.NewParser(sql).ParseStatement()
	if err != nil {
		return errResponse(1, err.Error())
	}

	result, err := ex.Execute(stmt)
	if err != nil {
		code := 2
		if be, ok := err.(engine.BongoError); ok {
			code = be.SuccessCode()
		}
		return errResponse(code, err.Error())
	}
	return okResponse(result.Data)
}
