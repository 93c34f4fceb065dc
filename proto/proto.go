// Package proto implements the firmware message format: a 16 bit
// message id, a one byte payload length and the payload itself.
package proto

import (
	"errors"
	"fmt"
)

const (
	MaxPayloadLen = 255
)

type Message struct {
	ID      uint16
	Payload []byte
}

func (m *Message) Serialize() ([]byte, error) {
	if len(m.Payload) > MaxPayloadLen {
		return nil, fmt.Errorf("payload of %d bytes exceeds maximum of %d", len(m.Payload), MaxPayloadLen)
	}

	b := make([]byte, 0, 3+len(m.Payload))
	b = append(b, uint8(m.ID>>8), uint8(m.ID), uint8(len(m.Payload)))
	b = append(b, m.Payload...)
	return b, nil
}

// ParseMessage consumes one message from d and returns the rest.
func ParseMessage(d []byte) (m Message, rest []byte, err error) {
	if len(d) < 3 {
		err = errors.New("need at least 3 bytes for a message header")
		return
	}

	m.ID = uint16(d[0])<<8 | uint16(d[1])
	plen := int(d[2])
	d = d[3:]

	if len(d) < plen {
		err = fmt.Errorf("message declares %d payload bytes, only %d follow", plen, len(d))
		return
	}

	m.Payload = d[:plen]
	rest = d[plen:]
	return
}
