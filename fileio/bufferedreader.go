package fileio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrIsDirectory is returned when a directory is opened as a file
var ErrIsDirectory = errors.New("is a directory")

// BufferedReader does buffered file reads
type BufferedReader struct {
	file      *os.File
	reader    io.Reader
	chunkSize int
	rqLen     int
	err       error
}

// New opens file for reading or returns error upon failing to do so
func (b *BufferedReader) New(filename string, chunkSize, numchunks int) error {
	file, err := openRegular(filename)
	if err != nil {
		return err
	}
	b.attach(file, bufio.NewReaderSize(file, chunkSize), chunkSize, numchunks)
	return nil
}

func (b *BufferedReader) attach(file *os.File, reader io.Reader, chunkSize, numchunks int) {
	b.file = file
	b.reader = reader
	b.chunkSize = chunkSize
	b.rqLen = numchunks
}

// StartReading starts a goroutine to read file contents in chunks.
// The channel is closed at EOF, on a read error or when ctx is done.
func (b *BufferedReader) StartReading(ctx context.Context) chan []byte {
	if b.file == nil {
		panic("cannot start reading without file handle")
	}
	outChan := make(chan []byte, b.rqLen)
	go func(channel chan []byte) {
		defer close(channel)
		defer b.file.Close()
		for {
			buf := make([]byte, b.chunkSize)
			// Read from file.
			read, err := b.reader.Read(buf)
			if read > 0 {
				select {
				case channel <- buf[:read]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				// File has been fully consumed or cannot be read further.
				if !errors.Is(err, io.EOF) {
					b.err = err
				}
				return
			}
		}
	}(outChan)
	return outChan
}

// Err returns the read error that ended the stream. Valid once the channel is closed.
func (b *BufferedReader) Err() error {
	return b.err
}

// openRegular opens filename for reading and refuses directories
func openRegular(filename string) (*os.File, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%s: %w", filename, ErrIsDirectory)
	}
	return file, nil
}
