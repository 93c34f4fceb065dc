package proto

import (
	"errors"
	"fmt"
)

// Command is a control request to the firmware-style runner.
type Command interface {
	isCommand()
}

type SetGpio struct {
	Pin   uint8
	State bool
}

type SendMessage struct {
	Data []byte
}

type Reset struct{}

func (SetGpio) isCommand()     {}
func (SendMessage) isCommand() {}
func (Reset) isCommand()       {}

const (
	cmdSetGpio     = 0x01
	cmdSendMessage = 0x02
	cmdReset       = 0x03
)

func EncodeCommand(c Command) ([]byte, error) {
	switch c := c.(type) {
	case SetGpio:
		st := uint8(0)
		if c.State {
			st = 1
		}
		return []byte{cmdSetGpio, c.Pin, st}, nil
	case SendMessage:
		if len(c.Data) > MaxPayloadLen {
			return nil, fmt.Errorf("message of %d bytes exceeds maximum of %d", len(c.Data), MaxPayloadLen)
		}
		b := make([]byte, 0, 2+len(c.Data))
		b = append(b, cmdSendMessage, uint8(len(c.Data)))
		b = append(b, c.Data...)
		return b, nil
	case Reset:
		return []byte{cmdReset}, nil
	}
	return nil, fmt.Errorf("unencodable command %T", c)
}

func DecodeCommand(d []byte) (Command, error) {
	if len(d) == 0 {
		return nil, errors.New("empty command")
	}

	switch d[0] {
	case cmdSetGpio:
		if len(d) < 3 {
			return nil, errors.New("truncated SetGpio command")
		}
		return SetGpio{Pin: d[1], State: d[2] != 0}, nil
	case cmdSendMessage:
		if len(d) < 2 {
			return nil, errors.New("truncated SendMessage command")
		}
		dlen := int(d[1])
		if len(d) < 2+dlen {
			return nil, fmt.Errorf("SendMessage declares %d bytes, only %d follow", dlen, len(d)-2)
		}
		return SendMessage{Data: d[2 : 2+dlen]}, nil
	case cmdReset:
		return Reset{}, nil
	}
	return nil, fmt.Errorf("unknown command byte %#02x", d[0])
}
