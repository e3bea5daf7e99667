package fileio

import "context"

type FileReader interface {
	New(filename string, chunkSize, numchunks int) error
	StartReading(ctx context.Context) chan []byte
	Err() error
}
