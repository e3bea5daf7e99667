package server

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"go_ftserve/constants"
	"go_ftserve/fileio"
	"go_ftserve/logger"
	"go_ftserve/networking"
	"go_ftserve/networking/status"
)

// sendListing streams a listing and reports the outcome on the control connection
func (s *Session) sendListing(data *networking.Conn, content []byte) error {
	if err := s.reply(status.Starting); err != nil {
		return err
	}
	sent, err := s.sendBuffer(data, content)
	s.server.metrics.AddBytesSent(sent)
	data.Close()
	return s.finish("listing", err)
}

// sendFile streams the file at path to the client
func (s *Session) sendFile(ctx context.Context, data *networking.Conn, path string) error {
	reader := s.server.factory.NewReader()
	if err := reader.New(path, s.server.chunkSize, s.server.queue); err != nil {
		s.logger.Info("cannot open requested file", logger.KeyPath, path, logger.Err(err))
		s.server.metrics.RecordTransfer("send", false)
		return s.reply(status.Unavailable)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	chunks := reader.StartReading(ctx)

	// File found, beginning transfer.
	if err := s.reply(status.FileOK); err != nil {
		return err
	}

	start := time.Now()
	sent, err := s.streamChunks(data, chunks)
	cancel()
	// Wait for the reader to stop before asking for its error.
	for range chunks {
	}
	if readErr := reader.Err(); readErr != nil {
		s.logger.Warn("file read failed mid-transfer", logger.KeyPath, path, logger.Err(readErr))
	}
	s.server.metrics.AddBytesSent(sent)
	data.Close()

	s.logger.Info("file sent", logger.KeyPath, path, logger.KeyBytes, sent, logger.KeyDuration, time.Since(start).String())
	return s.finish("send", err)
}

// receiveFile stores everything read from the data connection at path. No status is sent.
func (s *Session) receiveFile(data *networking.Conn, path string) {
	writer := s.server.factory.NewWriter()
	if err := writer.New(path, constants.DEFAULT_FILE_CHUNK_SIZE*1024, s.server.queue, s.server.checksum); err != nil {
		s.logger.Error("cannot create destination file", logger.KeyPath, path, logger.Err(err))
		s.discard(data)
		return
	}

	start := time.Now()
	chunks, done := writer.StartWriting()
	received, recvErr := s.receiveChunks(data, chunks)
	close(chunks)
	res := <-done
	s.server.metrics.AddBytesReceived(received)

	if recvErr != nil {
		s.logger.Warn("data connection failed mid-transfer", logger.KeyPath, path, logger.Err(recvErr))
	}
	if res.Err != nil {
		s.logger.Error("failed to write file", logger.KeyPath, path, logger.Err(res.Err))
	}
	s.server.metrics.RecordTransfer("receive", recvErr == nil && res.Err == nil)

	attrs := []any{logger.KeyPath, fileio.StoredName(s.server.factory, path), logger.KeyBytes, res.Bytes, logger.KeyDuration, time.Since(start).String()}
	if res.Checksum != nil {
		attrs = append(attrs, logger.KeyChecksum, s.server.checksum.String()+":"+hex.EncodeToString(res.Checksum))
	}
	s.logger.Info("file received", attrs...)
}

// discard drains an upload that has nowhere to go
func (s *Session) discard(data *networking.Conn) {
	discarded, _ := s.receiveChunks(data, nil)
	s.server.metrics.AddBytesReceived(discarded)
	s.server.metrics.RecordTransfer("receive", false)
}

// finish closes a transfer with 226, or 550 when the data connection failed
func (s *Session) finish(mode string, err error) error {
	s.server.metrics.RecordTransfer(mode, err == nil)
	if err != nil {
		s.logger.Warn("data transfer failed", logger.Err(err))
		return s.reply(status.Unavailable)
	}
	return s.reply(status.TransferComplete)
}

// sendBuffer writes content in chunk sized pieces
func (s *Session) sendBuffer(data *networking.Conn, content []byte) (int, error) {
	sent := 0
	for sent < len(content) {
		end := min(sent+s.server.chunkSize, len(content))
		if err := data.SendBytes(content[sent:end]); err != nil {
			return sent, err
		}
		sent = end
	}
	return sent, nil
}

// streamChunks forwards file chunks to the data connection until the channel closes
func (s *Session) streamChunks(data *networking.Conn, chunks <-chan []byte) (int, error) {
	sent := 0
	for chunk := range chunks {
		n, err := s.sendBuffer(data, chunk)
		sent += n
		if err != nil {
			return sent, err
		}
	}
	return sent, nil
}

// receiveChunks reads until the peer closes the data connection.
// A nil sink discards the payload.
func (s *Session) receiveChunks(data *networking.Conn, sink chan<- []byte) (int, error) {
	received := 0
	for {
		buf := make([]byte, s.server.chunkSize)
		n, err := data.RecvBytes(buf)
		if n > 0 {
			received += n
			if sink != nil {
				sink <- buf[:n]
			}
		}
		if errors.Is(err, io.EOF) {
			return received, nil
		}
		if err != nil {
			return received, err
		}
	}
}
