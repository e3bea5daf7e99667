package status

import "strconv"

// Code is a reply sent alone on the control connection as a 4-byte big-endian integer
type Code uint32

const (
	Starting         Code = 1   // Listing transfer starting
	FileOK           Code = 150 // File status okay, beginning send
	CommandOK        Code = 200 // Command accepted, data handshake follows
	Welcome          Code = 220 // Server ready
	Goodbye          Code = 221 // Closing control connection
	TransferComplete Code = 226 // Transfer done, data connection closed
	LoginOK          Code = 230 // User logged in
	NeedPassword     Code = 331 // Username okay, need password
	LoginFailed      Code = 430 // Invalid username or password
	UnknownCommand   Code = 502 // Command not implemented
	Unavailable      Code = 550 // Requested action not taken
)

var text = map[Code]string{
	Starting:         "Starting transfer.",
	FileOK:           "File status okay. About to open data connection.",
	CommandOK:        "Command okay.",
	Welcome:          "Welcome, server ready.",
	Goodbye:          "Goodbye!",
	TransferComplete: "Closing data connection. Requested file action successful.",
	LoginOK:          "User logged in, proceed.",
	NeedPassword:     "User name okay, need password.",
	LoginFailed:      "Invalid username or password.",
	UnknownCommand:   "Command not implemented.",
	Unavailable:      "Requested action not taken. File unavailable.",
}

// Known returns true if code belongs to the fixed reply vocabulary
func (c Code) Known() bool {
	_, ok := text[c]
	return ok
}

// String returns the numeric code followed by its human readable text
func (c Code) String() string {
	if msg, ok := text[c]; ok {
		return strconv.Itoa(int(c)) + " " + msg
	}
	return strconv.Itoa(int(c)) + " Unknown reply."
}
