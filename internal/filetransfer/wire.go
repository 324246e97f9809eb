// Package filetransfer implements §4.15 FileTransfer + Cache: a chunked
// request/reply protocol multiplexed by request_id over an established
// transport connection, with a content-addressed on-disk cache.
package filetransfer

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Wire framing: a fixed 4-byte magic, a 1-byte frame type, a 1-byte
// request_id length, the request_id itself, a 4-byte big-endian payload
// length, then the payload — request_id lets one connection multiplex
// many in-flight transfers (§4.15), unlike pairing/indexsync's
// single-exchange frames.
var magic = [4]byte{'F', 'V', 'F', '1'}

const (
	typeRequest byte = 0x01
	typeChunk   byte = 0x02
	typeEnd     byte = 0x03
	typeError   byte = 0x04
)

const (
	maxPayload = 4 << 20 // 4 MiB per chunk
	chunkSize  = 256 << 10
)

// Request is the opening frame of a transfer (§4.15).
type Request struct {
	FileID       int64   `json:"file_id"`
	ExpectedSize int64   `json:"expected_size"`
	Checksum     *string `json:"checksum,omitempty"`
}

// End carries the sender's own byte count so the receiver can sanity
// check before the final checksum comparison.
type End struct {
	TotalBytes int64 `json:"total_bytes"`
}

// ErrorFrame reports a failure ending the transfer (e.g. NotFound).
type ErrorFrame struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type frame struct {
	kind      byte
	requestID string
	payload   []byte
}

func writeFrame(w io.Writer, kind byte, requestID string, payload []byte) error {
	if len(requestID) > 255 {
		return fmt.Errorf("filetransfer: request_id too long")
	}
	if len(payload) > maxPayload {
		return fmt.Errorf("filetransfer: payload too large (%d bytes)", len(payload))
	}
	header := make([]byte, 4+1+1+len(requestID)+4)
	copy(header[0:4], magic[:])
	header[4] = kind
	header[5] = byte(len(requestID))
	copy(header[6:6+len(requestID)], requestID)
	binary.BigEndian.PutUint32(header[6+len(requestID):], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("filetransfer: write frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("filetransfer: write frame body: %w", err)
		}
	}
	return nil
}

func readFrame(r io.Reader) (frame, error) {
	fixed := make([]byte, 4+1+1)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return frame{}, fmt.Errorf("filetransfer: read frame header: %w", err)
	}
	if fixed[0] != magic[0] || fixed[1] != magic[1] || fixed[2] != magic[2] || fixed[3] != magic[3] {
		return frame{}, fmt.Errorf("filetransfer: bad magic")
	}
	kind := fixed[4]
	idLen := int(fixed[5])

	rest := make([]byte, idLen+4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return frame{}, fmt.Errorf("filetransfer: read frame id/length: %w", err)
	}
	requestID := string(rest[:idLen])
	payloadLen := binary.BigEndian.Uint32(rest[idLen:])
	if payloadLen > maxPayload {
		return frame{}, fmt.Errorf("filetransfer: payload too large (%d bytes)", payloadLen)
	}
	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return frame{}, fmt.Errorf("filetransfer: read frame payload: %w", err)
		}
	}
	return frame{kind: kind, requestID: requestID, payload: payload}, nil
}

func writeRequest(w io.Writer, requestID string, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return writeFrame(w, typeRequest, requestID, body)
}

func writeChunk(w io.Writer, requestID string, data []byte) error {
	return writeFrame(w, typeChunk, requestID, data)
}

func writeEnd(w io.Writer, requestID string, e End) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return writeFrame(w, typeEnd, requestID, body)
}

func writeError(w io.Writer, requestID string, code, message string) error {
	body, err := json.Marshal(ErrorFrame{Code: code, Message: message})
	if err != nil {
		return err
	}
	return writeFrame(w, typeError, requestID, body)
}
