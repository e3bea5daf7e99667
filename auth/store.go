// Package auth checks login credentials against a flat file of
// "username password" lines.
package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Authenticator validates a username and password pair
type Authenticator interface {
	Authenticate(username, password string) (bool, error)
}

// FileStore reads credentials from a file on every login attempt
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path or an error if the file cannot be read
func NewFileStore(path string) (*FileStore, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("credential store unreadable: %w", err)
	}
	file.Close()
	return &FileStore{path: path}, nil
}

// Path returns the location of the credential file
func (s *FileStore) Path() string {
	return s.path
}

// Authenticate returns true on the first line matching both username and password
func (s *FileStore) Authenticate(username, password string) (bool, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return false, fmt.Errorf("credential store unreadable: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		user, pass, ok := parseRecord(scanner.Text())
		if !ok {
			continue
		}
		if user == username && pass == password {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("reading credential store: %w", err)
	}
	return false, nil
}

// parseRecord splits a "username password" line. Surrounding whitespace is ignored.
func parseRecord(line string) (string, string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}
