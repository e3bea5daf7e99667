package fileio

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"io"
	"os"
)

// BufferedWriter does buffered write to file
type BufferedWriter struct {
	file       *os.File
	writer     *bufio.Writer
	encoder    io.WriteCloser // Optional stage in front of writer
	wqLen      int
	checksum   Checksum
	crc32Hash  uint32
	sha256Hash hash.Hash
}

// New creates new file for writing or returns error upon failing to do so
func (b *BufferedWriter) New(filename string, bufferSize, qlen int, checksum Checksum) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if checksum == ChecksumSHA256 {
		b.sha256Hash = sha256.New()
	}
	b.checksum = checksum
	b.file = file
	// New buffered writer.
	b.writer = bufio.NewWriterSize(b.file, bufferSize)
	b.wqLen = qlen
	return nil
}

// StartWriting starts goroutine for writing chunks of data to file.
// Close the returned chunk channel to finish the file and receive the result.
func (b *BufferedWriter) StartWriting() (chan<- []byte, <-chan WriteResult) {
	if b.file == nil {
		panic("cannot start writing without file handle")
	}
	done := make(chan WriteResult, 1)
	// Make write queue.
	stream := make(chan []byte, b.wqLen)
	// Start consuming queue in goroutine.
	go func(chunkStream chan []byte, result chan WriteResult) {
		var res WriteResult
		var out io.Writer = b.writer
		if b.encoder != nil {
			out = b.encoder
		}

		for chunk := range chunkStream {
			// Keep draining after a failure so the producer never blocks.
			if res.Err != nil {
				continue
			}
			if _, err := out.Write(chunk); err != nil {
				res.Err = err
				continue
			}
			res.Bytes += int64(len(chunk))

			// Update hash.
			switch b.checksum {
			case ChecksumSHA256:
				progressiveChecksumSHA256(b.sha256Hash, chunk)
			case ChecksumCRC32:
				b.crc32Hash = progressiveChecksumCRC32(b.crc32Hash, chunk)
			}
		}

		// Write any remaining bytes.
		if b.encoder != nil {
			if err := b.encoder.Close(); err != nil && res.Err == nil {
				res.Err = err
			}
		}
		if err := b.writer.Flush(); err != nil && res.Err == nil {
			res.Err = err
		}
		if err := b.file.Close(); err != nil && res.Err == nil {
			res.Err = err
		}

		// Get SHA256 or CRC32 checksum for all data written so far.
		switch b.checksum {
		case ChecksumSHA256:
			res.Checksum = b.sha256Hash.Sum(nil)
		case ChecksumCRC32:
			res.Checksum = binary.BigEndian.AppendUint32(make([]byte, 0, 4), b.crc32Hash)
		}

		// Signal that all data has been written.
		result <- res
		close(result)
	}(stream, done)
	return stream, done
}
