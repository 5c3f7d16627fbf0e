// Command bongosh is a minimal interactive client over BongoDB's wire
// protocol (§6): a thin client-side convenience, strictly out of scope
// for any server-side contract beyond the wire format itself.
package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

type request struct {
	SQL string `json:"sql"`
}

type response struct {
	Successful int     `json:"successful"`
	Error      *string `json:"error"`
	Data       [][]any `json:"data"`
}

func main() {
	addr := flag.String("addr", "localhost:7878", "server address")
	format := flag.String("format", "table", "Output format: table, csv, tsv, json, yaml")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bongosh: connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	out := colorable.NewColorableStdout()
	prompt := "bongo> "
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		prompt = ""
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      prompt,
		HistoryFile: historyFilePath(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bongosh: readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Fprintf(out, "connected to %s\n", *addr)
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return
			}
			fmt.Fprintf(os.Stderr, "bongosh: %v\n", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "\\q" || line == "exit" || line == "quit" {
			return
		}
		resp, err := roundTrip(conn, line)
		if err != nil {
			fmt.Fprintf(out, "connection error: %v\n", err)
			return
		}
		printResponse(out, resp, *format)
	}
}

func historyFilePath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.bongosh_history"
	}
	return ".bongosh_history"
}

func roundTrip(conn net.Conn, sql string) (*response, error) {
	body, err := json.Marshal(request{SQL: sql})
	if err != nil {
		return nil, err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return nil, err
	}
	if _, err := conn.Write(body); err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	respBuf := make([]byte, n)
	if _, err := io.ReadFull(conn, respBuf); err != nil {
		return nil, err
	}
	var resp response
	if err := json.Unmarshal(respBuf, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// printResponse renders resp in the requested output format, mirroring the
// teacher REPL's -format flag (table/csv/tsv/json/yaml).
func printResponse(out io.Writer, resp *response, format string) {
	if resp.Successful != 0 {
		msg := "unknown error"
		if resp.Error != nil {
			msg = *resp.Error
		}
		fmt.Fprintf(out, "ERROR (code %d): %s\n", resp.Successful, msg)
		return
	}
	if len(resp.Data) == 0 {
		fmt.Fprintln(out, "OK")
		return
	}
	switch strings.ToLower(format) {
	case "json":
		printJSON(out, resp.Data)
	case "yaml":
		printYAML(out, resp.Data)
	case "csv":
		printDelimited(out, resp.Data, ",")
	case "tsv":
		printDelimited(out, resp.Data, "\t")
	default:
		printTable(out, resp.Data)
	}
}

func printTable(out io.Writer, data [][]any) {
	for _, row := range data {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(out, strings.Join(cells, "\t"))
	}
	fmt.Fprintf(out, "(%s)\n", humanize.Comma(int64(len(data))))
}

func printDelimited(out io.Writer, data [][]any, sep string) {
	for _, row := range data {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(out, strings.Join(cells, sep))
	}
}

func printJSON(out io.Writer, data [][]any) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "ERROR: %v\n", err)
		return
	}
	out.Write(b)
	fmt.Fprintln(out)
}

func printYAML(out io.Writer, data [][]any) {
	b, err := yaml.Marshal(data)
	if err != nil {
		fmt.Fprintf(out, "ERROR: %v\n", err)
		return
	}
	out.Write(b)
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
