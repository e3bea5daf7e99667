package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go_ftserve/client/comms"
	"go_ftserve/config"
	"go_ftserve/constants"
	"go_ftserve/fileio"
	"go_ftserve/logger"

	"github.com/akamensky/argparse"
	"golang.org/x/term"
)

func main() {
	args := argparse.NewParser("ftclient", constants.Title+" client")

	cfgFile := args.String("c", "config", &argparse.Options{Required: false, Help: "Configuration file (YAML, TOML or JSON)"})
	host := args.String("a", "address", &argparse.Options{Required: false, Help: "Server host address"})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Server control port " +
		fmt.Sprintf("(default %d)", constants.DEFAULT_PORT)})
	dataPort := args.Int("d", "data-port", &argparse.Options{Required: false, Help: "Local data port the server connects to " +
		fmt.Sprintf("(default %d)", constants.DEFAULT_DATA_PORT)})
	dscp := args.Int("q", "dscp", &argparse.Options{Required: false, Help: "DSCP field for QoS of data connections"})
	sha := args.Flag("s", "sha", &argparse.Options{Help: "Print SHA256 checksum instead of CRC32 after transfers"})
	user := args.String("u", "user", &argparse.Options{Required: false, Help: "Username, prompted for when omitted"})
	level := args.Selector("v", "log-level", []string{"DEBUG", "INFO", "WARN", "ERROR"}, &argparse.Options{Required: false,
		Help: "Log level"})

	err := args.Parse(os.Args)
	if err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	cfg, err := config.LoadClient(*cfgFile)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dataPort != 0 {
		cfg.DataPort = *dataPort
	}
	if *dscp != 0 {
		cfg.DSCP = *dscp
	}
	if *level != "" {
		cfg.Logging.Level = *level
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	client := comms.New(comms.Options{
		DataPort:      cfg.DataPort,
		ChunkSize:     cfg.ChunkSize,
		DSCP:          cfg.DSCP,
		AcceptTimeout: cfg.AcceptTimeout,
		ReadTimeout:   cfg.ReadTimeout,
	}, logger.L())

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	if err := client.Connect(context.Background(), addr); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	defer client.Close()
	fmt.Println("Connected to", addr, "with data port", client.DataPort())

	input := bufio.NewReader(os.Stdin)

	name := *user
	if name == "" {
		fmt.Print("Username: ")
		name, _ = readLine(input)
	}
	fmt.Print("Password: ")
	pass, err := readPassword(input)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	if err := client.Login(name, pass); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	fmt.Println("Logged in")

	for {
		fmt.Print("ftp> ")
		line, err := readLine(input)
		if err != nil {
			// End of input behaves like quit.
			client.Quit()
			return
		}
		if !run(client, line, *sha) {
			return
		}
	}
}

// run executes one shell line and returns false once the session is over
func run(client *comms.Client, line string, sha bool) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	var err error
	switch strings.ToLower(fields[0]) {
	case "ls":
		err = client.ListDir(arg, os.Stdout)
	case "pwd":
		var dir string
		if dir, err = client.PrintDir(); err == nil {
			fmt.Print(dir)
		}
	case "cd":
		if arg == "" {
			fmt.Println("usage: cd <dir>")
			return true
		}
		err = client.ChangeDir(arg)
	case "get":
		if arg == "" {
			fmt.Println("usage: get <file>")
			return true
		}
		begin := time.Now()
		var n int64
		local := filepath.Base(arg)
		if n, err = client.Get(arg, local); err == nil {
			fmt.Println("Received", n, "bytes in", time.Since(begin))
			printChecksum(local, sha)
		}
	case "put":
		if arg == "" {
			fmt.Println("usage: put <file>")
			return true
		}
		begin := time.Now()
		var n int64
		if n, err = client.Put(arg, filepath.Base(arg)); err == nil {
			fmt.Println("Sent", n, "bytes in", time.Since(begin))
			printChecksum(arg, sha)
		}
	case "quit", "exit":
		if err := client.Quit(); err != nil {
			fmt.Println(err.Error())
		}
		fmt.Println("Disconnected")
		return false
	case "help":
		fmt.Println("Commands: ls [dir], pwd, cd <dir>, get <file>, put <file>, quit")
	default:
		fmt.Println("Unknown command. Type help for a list of commands.")
	}

	if err != nil {
		fmt.Println(err.Error())
		// Control connection failures end the session.
		if !errors.Is(err, comms.ErrUnavailable) && !errors.Is(err, comms.ErrUnknownCommand) && !isLocal(err) {
			return false
		}
	}
	return true
}

// printChecksum prints the digest the server logs for stored files
func printChecksum(file string, sha bool) {
	var sum []byte
	var err error
	method := "crc32"
	if sha {
		method = "sha256"
		sum, err = fileio.GetFileChecksumSHA256(file)
	} else {
		sum, err = fileio.GetFileChecksumCRC32(file)
	}
	if err != nil {
		return
	}
	fmt.Println("Checksum " + method + ":" + hex.EncodeToString(sum))
}

// isLocal reports errors caused by the local filesystem
func isLocal(err error) bool {
	var pathErr *os.PathError
	return errors.As(err, &pathErr)
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword reads without echo when stdin is a terminal
func readPassword(r *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pass, err := term.ReadPassword(fd)
		fmt.Println()
		return string(pass), err
	}
	return readLine(r)
}
