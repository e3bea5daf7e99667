package networking

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"strings"

	"go_ftserve/constants"
	"go_ftserve/networking/status"
)

// SendStatus sends a status code as a 4-byte big-endian integer
func (c *Conn) SendStatus(code status.Code) error {
	return c.writeUint32(uint32(code))
}

// RecvStatus reads a 4-byte big-endian status code
func (c *Conn) RecvStatus() (status.Code, error) {
	v, err := c.readUint32()
	return status.Code(v), err
}

// SendReady tells the server the data port is listening
func (c *Conn) SendReady() error {
	return c.writeUint32(constants.READY_SIGNAL)
}

// WaitReady blocks until the peer sends the ready signal. Its value carries no meaning.
func (c *Conn) WaitReady() error {
	_, err := c.readUint32()
	return err
}

// SendMessage sends one text message terminated by a newline
func (c *Conn) SendMessage(msg string) error {
	if strings.ContainsAny(msg, "\r\n") {
		return ErrLineBreak
	}
	if len(msg) > constants.MAX_MESSAGE_SIZE {
		return ErrMessageTooLong
	}
	return c.SendBytes([]byte(msg + "\n"))
}

// RecvMessage reads one newline terminated text message without its terminator
func (c *Conn) RecvMessage() (string, error) {
	c.armRead()
	line, err := c.reader.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		// Skip the rest of the oversized message to stay in sync.
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = c.reader.ReadSlice('\n')
		}
		if err != nil {
			return "", err
		}
		return "", ErrMessageTooLong
	}
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}

	msg := strings.TrimRight(string(line), "\r\n")
	if len(msg) > constants.MAX_MESSAGE_SIZE {
		return "", ErrMessageTooLong
	}
	return msg, nil
}

func (c *Conn) writeUint32(v uint32) error {
	return c.SendBytes(binary.BigEndian.AppendUint32(make([]byte, 0, 4), v))
}

func (c *Conn) readUint32() (uint32, error) {
	buf := make([]byte, 4)
	c.armRead()
	if _, err := io.ReadFull(c.reader, buf); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}
