package proto

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Encoder writes frames as newline-terminated JSON objects. It is safe for
// concurrent use: the mutex keeps frames from two goroutines from
// interleaving on the wire.
type Encoder struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewEncoder wraps w, typically a net.Conn.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode marshals the frame, appends the newline delimiter and flushes.
func (e *Encoder) Encode(f *Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write frame delimiter: %w", err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("flush frame: %w", err)
	}
	return nil
}

// Decoder reads one JSON object per line. The buffer is owned by a single
// connection: a trailing partial line stays buffered until the next Decode.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder wraps r, typically a net.Conn.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode blocks until a full line arrives and unmarshals it. It returns
// io.EOF once the peer closes the stream; a partial line at EOF is
// discarded. A line that is not valid JSON is an error the caller must
// treat as fatal for the connection.
func (d *Decoder) Decode() (*Frame, error) {
	line, err := d.r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}

	var f Frame
	if err := json.Unmarshal(line, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &f, nil
}
