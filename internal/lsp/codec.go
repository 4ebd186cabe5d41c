package lsp

// codec.go: Content-Length framed JSON-RPC 2.0 reading and writing.

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// errMalformed marks a frame that was read in full but could not be
// decoded. The stream is still usable after it.
var errMalformed = errors.New("malformed message")

// codec reads client messages and writes replies and notifications.
// Writes may come from several goroutines.
type codec struct {
	reader *bufio.Reader
	writer io.Writer
	mu     sync.Mutex // protects writer
}

func newCodec(r io.Reader, w io.Writer) *codec {
	return &codec{
		reader: bufio.NewReader(r),
		writer: w,
	}
}

// encode writes a JSON-RPC message with Content-Length framing.
func (c *codec) encode(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// decode reads one Content-Length framed JSON-RPC message.
func (c *codec) decode() (*rpcMessage, error) {
	contentLength := -1
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			// Content-Type and unknown headers are ignored.
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("parse Content-Length: %w", err)
		}
		contentLength = n
	}

	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var msg rpcMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return &msg, nil
}

func (c *codec) reply(id json.RawMessage, result any) error {
	return c.encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

func (c *codec) replyError(id json.RawMessage, code int, message string) error {
	return c.encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   rpcError{Code: code, Message: message},
	})
}

// notify sends a notification (no ID, no response expected).
func (c *codec) notify(method string, params any) error {
	return c.encode(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}
