package fileio

type FileWriter interface {
	New(filename string, bufferSize, qlen int, checksum Checksum) error
	StartWriting() (chan<- []byte, <-chan WriteResult)
}

// WriteResult is delivered once all queued chunks have been persisted
type WriteResult struct {
	Bytes    int64  // Bytes written before any error
	Checksum []byte // Nil when checksums are disabled
	Err      error  // First write, flush or close error
}
