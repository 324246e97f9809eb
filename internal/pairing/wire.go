package pairing

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Wire framing (§4.10): a fixed 4-byte magic, a 1-byte message type, a
// 4-byte big-endian length, then a JSON payload.
var magic = [4]byte{'F', 'V', 'P', '1'}

const (
	typeRequest  byte = 0x01
	typeResponse byte = 0x81
)

const maxFrameLen = 1 << 20 // 1 MiB: generous upper bound for a JSON pairing payload

// Request is the join-flow payload sent by the joining device (§4.9).
type Request struct {
	PIN        string `json:"pin"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	DeviceType string `json:"device_type"`
}

// Response is what the initiator answers with (§4.9).
type Response struct {
	Result       Result `json:"result"`
	FamilySecret string `json:"family_secret,omitempty"`
	Message      string `json:"message,omitempty"`
}

func writeFrame(w io.Writer, msgType byte, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("pairing: marshal frame: %w", err)
	}
	header := make([]byte, 4+1+4)
	copy(header[0:4], magic[:])
	header[4] = msgType
	binary.BigEndian.PutUint32(header[5:9], uint32(len(body)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("pairing: write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("pairing: write frame body: %w", err)
	}
	return nil
}

func readFrame(r io.Reader) (byte, []byte, error) {
	header := make([]byte, 4+1+4)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, fmt.Errorf("pairing: read frame header: %w", err)
	}
	if header[0] != magic[0] || header[1] != magic[1] || header[2] != magic[2] || header[3] != magic[3] {
		return 0, nil, fmt.Errorf("pairing: bad magic")
	}
	msgType := header[4]
	length := binary.BigEndian.Uint32(header[5:9])
	if length > maxFrameLen {
		return 0, nil, fmt.Errorf("pairing: frame too large (%d bytes)", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("pairing: read frame body: %w", err)
	}
	return msgType, body, nil
}

func writeRequest(w io.Writer, req Request) error {
	return writeFrame(w, typeRequest, req)
}

func readRequest(r io.Reader) (Request, error) {
	var req Request
	msgType, body, err := readFrame(r)
	if err != nil {
		return req, err
	}
	if msgType != typeRequest {
		return req, fmt.Errorf("pairing: expected request frame, got type %#x", msgType)
	}
	err = json.Unmarshal(body, &req)
	return req, err
}

func writeResponse(w io.Writer, resp Response) error {
	return writeFrame(w, typeResponse, resp)
}

func readResponse(r io.Reader) (Response, error) {
	var resp Response
	msgType, body, err := readFrame(r)
	if err != nil {
		return resp, err
	}
	if msgType != typeResponse {
		return resp, fmt.Errorf("pairing: expected response frame, got type %#x", msgType)
	}
	err = json.Unmarshal(body, &resp)
	return resp, err
}
