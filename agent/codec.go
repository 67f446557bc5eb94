package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// encodeMessage renders msg as one text frame.
func encodeMessage(msg *Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, fmt.Errorf("encode: message has no type")
	}
	return json.Marshal(msg)
}

// decodeMessage parses one text frame. Every failure wraps ErrDecode so the
// caller can drop the frame and keep the connection.
//
// Only type (and cmd on commands) must have the right JSON type. ts is read
// leniently on every frame, and the remaining command fields are coerced so
// a sloppy command still gets a reply.
func decodeMessage(frame []byte) (*Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	var msg Message
	if err := json.Unmarshal(fields["type"], &msg.Type); err != nil || msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrDecode)
	}
	msg.Ts = looseInt(fields["ts"])
	delete(fields, "ts")

	if msg.Type == TypeCommand {
		return decodeCommand(&msg, fields)
	}

	rest, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := json.Unmarshal(rest, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return &msg, nil
}

func decodeCommand(msg *Message, fields map[string]json.RawMessage) (*Message, error) {
	if raw, ok := fields["cmd"]; ok {
		if err := json.Unmarshal(raw, &msg.Cmd); err != nil {
			return nil, fmt.Errorf("%w: cmd: %w", ErrDecode, err)
		}
	}
	msg.MsgID = looseText(fields["msgId"])
	msg.Args = looseArgs(fields["args"])
	if ms := looseInt(fields["timeout"]); ms > 0 {
		msg.Timeout = ms
	}
	return msg, nil
}

// looseText returns a JSON string unquoted and any other value as its
// compact JSON text. null and absent values are empty.
func looseText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var buf bytes.Buffer
	if json.Compact(&buf, raw) != nil {
		return string(raw)
	}
	return buf.String()
}

// looseArgs accepts an array of any values, or a single scalar taken as the
// only argument.
func looseArgs(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return []string{looseText(raw)}
	}
	args := make([]string, 0, len(items))
	for _, item := range items {
		args = append(args, looseText(item))
	}
	return args
}

// looseInt reads a JSON number, or a string holding one, truncated toward
// zero. Anything else is 0.
func looseInt(raw json.RawMessage) int64 {
	var f float64
	if json.Unmarshal(raw, &f) != nil {
		s := looseText(raw)
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = v
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}

func nowMs(t time.Time) int64 {
	return t.UnixMilli()
}
