package fileio

import (
	"bufio"
	"io"

	"go_ftserve/constants"

	"github.com/pierrec/lz4/v4"
)

// LZ4Factory stores written files as LZ4 frames and transparently decompresses them on read
type LZ4Factory struct{}

func (l *LZ4Factory) NewReader() FileReader {
	return new(LZ4Reader)
}

func (l *LZ4Factory) NewWriter() FileWriter {
	return new(LZ4Writer)
}

// LZ4Reader reads "name.lz4" when it exists and falls back to the plain file
type LZ4Reader struct {
	BufferedReader
}

// New opens the compressed or plain file for reading
func (l *LZ4Reader) New(filename string, chunkSize, numchunks int) error {
	if file, err := openRegular(filename + constants.LZ4_SUFFIX); err == nil {
		var src io.Reader = bufio.NewReaderSize(file, chunkSize)
		// An empty upload may leave a file without a frame header.
		if info, err := file.Stat(); err == nil && info.Size() > 0 {
			src = lz4.NewReader(src)
		}
		l.attach(file, src, chunkSize, numchunks)
		return nil
	}
	return l.BufferedReader.New(filename, chunkSize, numchunks)
}

// LZ4Writer writes "name.lz4" as a single LZ4 frame
type LZ4Writer struct {
	BufferedWriter
}

// New creates the compressed file for writing
func (l *LZ4Writer) New(filename string, bufferSize, qlen int, checksum Checksum) error {
	if err := l.BufferedWriter.New(filename+constants.LZ4_SUFFIX, bufferSize, qlen, checksum); err != nil {
		return err
	}
	l.encoder = lz4.NewWriter(l.writer)
	return nil
}

// StoredName returns the on-disk name of a file written by the factory
func StoredName(factory IOFactory, filename string) string {
	if _, ok := factory.(*LZ4Factory); ok {
		return filename + constants.LZ4_SUFFIX
	}
	return filename
}
