package fileio

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strings"
)

// Checksum selects the digest computed over written files
type Checksum int

const (
	ChecksumNone Checksum = iota
	ChecksumCRC32
	ChecksumSHA256
)

// ParseChecksum converts "none", "crc32" or "sha256" to a Checksum
func ParseChecksum(name string) (Checksum, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return ChecksumNone, nil
	case "crc32":
		return ChecksumCRC32, nil
	case "sha256":
		return ChecksumSHA256, nil
	}
	return ChecksumNone, fmt.Errorf("unknown checksum %q", name)
}

func (c Checksum) String() string {
	switch c {
	case ChecksumCRC32:
		return "crc32"
	case ChecksumSHA256:
		return "sha256"
	default:
		return "none"
	}
}

// GetFileChecksumSHA256 returns SHA256 checksum of given file
func GetFileChecksumSHA256(file string) ([]byte, error) {
	return fileChecksum(file, sha256.New())
}

// GetFileChecksumCRC32 returns CRC32 checksum of given file
func GetFileChecksumCRC32(file string) ([]byte, error) {
	return fileChecksum(file, crc32.New(crc32.IEEETable))
}

func fileChecksum(file string, h hash.Hash) ([]byte, error) {
	handle, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	if _, err := io.CopyBuffer(h, handle, make([]byte, 64*1024)); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// progressiveChecksumSHA256 incrementally calculates SHA256 checksum
func progressiveChecksumSHA256(shaHash hash.Hash, data []byte) hash.Hash {
	if shaHash == nil {
		shaHash = sha256.New()
	}
	if len(data) > 0 {
		shaHash.Write(data)
	}
	return shaHash
}

// progressiveChecksumCRC32 incrementally calculates CRC32 checksum
func progressiveChecksumCRC32(hash uint32, data []byte) uint32 {
	return crc32.Update(hash, crc32.IEEETable, data)
}
