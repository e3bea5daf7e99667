package constants

import "time"

const (
	DEFAULT_PORT            = 30021 // Control connection port
	DEFAULT_DATA_PORT       = 30020 // Client data port the server connects back to
	DEFAULT_CHUNK_SIZE      = 512   // Bytes per data connection send/recv call
	MAX_MESSAGE_SIZE        = 512   // Longest accepted control message
	FILE_WRITE_QUEUE        = 10    // Queued chunks before blocking on file writes
	FILE_READ_QUEUE         = 4     // Chunks read ahead of the data connection
	DEFAULT_FILE_CHUNK_SIZE = 256   // File buffer size in KB
	DEFAULT_DSCP            = 0     // QoS for data connections, 0 leaves the OS default
	AUTH_FILE               = ".auth"
	LZ4_SUFFIX              = ".lz4" // Suffix of files stored compressed
	READY_SIGNAL            = 0      // Value of the pre-handshake ready signal
)

const (
	DEFAULT_CONNECT_TIMEOUT = 10 * time.Second
	DEFAULT_ACCEPT_TIMEOUT  = 10 * time.Second
	DEFAULT_READ_TIMEOUT    = 5 * time.Minute
	DEFAULT_WRITE_TIMEOUT   = time.Minute
)

const Title = "Two-channel file transfer"
