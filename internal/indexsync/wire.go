package indexsync

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Wire framing (§4.14): a fixed 4-byte magic, a 1-byte message type, a
// 4-byte big-endian length, then a JSON payload — the same shape as
// pairing's handshake frame (§4.10), reused here for a different message
// set.
var magic = [4]byte{'F', 'V', 'S', '1'}

const (
	typeRequest   byte = 0x01
	typeResponse  byte = 0x02
	typeNotify    byte = 0x03
	typeTombstone byte = 0x04
)

const maxFrameLen = 16 << 20 // 16 MiB: a full-sync response batch can be large

func writeFrame(w io.Writer, msgType byte, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("indexsync: marshal frame: %w", err)
	}
	header := make([]byte, 4+1+4)
	copy(header[0:4], magic[:])
	header[4] = msgType
	binary.BigEndian.PutUint32(header[5:9], uint32(len(body)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("indexsync: write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("indexsync: write frame body: %w", err)
	}
	return nil
}

func readFrame(r io.Reader) (byte, []byte, error) {
	header := make([]byte, 4+1+4)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, fmt.Errorf("indexsync: read frame header: %w", err)
	}
	if header[0] != magic[0] || header[1] != magic[1] || header[2] != magic[2] || header[3] != magic[3] {
		return 0, nil, fmt.Errorf("indexsync: bad magic")
	}
	msgType := header[4]
	length := binary.BigEndian.Uint32(header[5:9])
	if length > maxFrameLen {
		return 0, nil, fmt.Errorf("indexsync: frame too large (%d bytes)", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("indexsync: read frame body: %w", err)
	}
	return msgType, body, nil
}

func writeRequest(w io.Writer, req IndexRequest) error { return writeFrame(w, typeRequest, req) }

func writeResponse(w io.Writer, resp IndexResponse) error { return writeFrame(w, typeResponse, resp) }

func writeNotify(w io.Writer, n IndexNotify) error { return writeFrame(w, typeNotify, n) }

func writeTombstone(w io.Writer, t IndexTombstone) error { return writeFrame(w, typeTombstone, t) }

// readMessage reads one frame and unmarshals it into whichever of the four
// message shapes its type byte names, returning the type byte so the
// caller can switch on it.
func readMessage(r io.Reader) (byte, any, error) {
	msgType, body, err := readFrame(r)
	if err != nil {
		return 0, nil, err
	}
	switch msgType {
	case typeRequest:
		var m IndexRequest
		err = json.Unmarshal(body, &m)
		return msgType, m, err
	case typeResponse:
		var m IndexResponse
		err = json.Unmarshal(body, &m)
		return msgType, m, err
	case typeNotify:
		var m IndexNotify
		err = json.Unmarshal(body, &m)
		return msgType, m, err
	case typeTombstone:
		var m IndexTombstone
		err = json.Unmarshal(body, &m)
		return msgType, m, err
	default:
		return msgType, nil, fmt.Errorf("indexsync: unknown frame type %#x", msgType)
	}
}
