package networking

import "strings"

// Verb is the command name of a control message
type Verb string

const (
	VerbUser      Verb = "USER"
	VerbPass      Verb = "PASS"
	VerbList      Verb = "SLS"
	VerbGet       Verb = "GET"
	VerbPut       Verb = "PUT"
	VerbChangeDir Verb = "SCD"
	VerbPrintDir  Verb = "SPWD"
	VerbQuit      Verb = "QUIT"
)

var knownVerbs = map[Verb]struct{}{
	VerbUser:      {},
	VerbPass:      {},
	VerbList:      {},
	VerbGet:       {},
	VerbPut:       {},
	VerbChangeDir: {},
	VerbPrintDir:  {},
	VerbQuit:      {},
}

// Command is a parsed control message
type Command struct {
	Verb Verb
	Arg  string
}

// ParseCommand splits a control message into verb and optional argument.
// Verbs are case sensitive.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 0:
		return Command{}, ErrEmptyCommand
	case 1:
		return Command{Verb: Verb(fields[0])}, nil
	case 2:
		return Command{Verb: Verb(fields[0]), Arg: fields[1]}, nil
	default:
		return Command{}, ErrArgumentWhitespace
	}
}

// Known returns true if the verb is part of the protocol
func (c Command) Known() bool {
	_, ok := knownVerbs[c.Verb]
	return ok
}

// String returns the wire encoding of the command
func (c Command) String() string {
	if c.Arg == "" {
		return string(c.Verb)
	}
	return string(c.Verb) + " " + c.Arg
}
