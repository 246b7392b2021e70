package main

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lBebol/Multi-Client-Chat-Application/internal/proto"
)

const connectTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr     string
		username string
	)

	cmd := &cobra.Command{
		Use:           "chat-client",
		Short:         "Command-line chat client",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			if username == "" {
				return errors.New("--user is required")
			}
			return runClient(addr, username)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:12345", "server address")
	cmd.Flags().StringVar(&username, "user", "", "username to log in with")

	return cmd
}

func runClient(addr, username string) error {
	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	enc := proto.NewEncoder(conn)
	dec := proto.NewDecoder(conn)

	if err := enc.Encode(&proto.Frame{Type: proto.TypeLogin, Username: username}); err != nil {
		return fmt.Errorf("send login: %w", err)
	}

	// The server's first reply is bounded by a deadline so a dead server
	// does not hang the prompt forever.
	if err := conn.SetReadDeadline(time.Now().Add(connectTimeout)); err != nil {
		return fmt.Errorf("set login deadline: %w", err)
	}
	reply, err := dec.Decode()
	if err != nil {
		return fmt.Errorf("read login reply: %w", err)
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return fmt.Errorf("clear login deadline: %w", err)
	}

	switch reply.Type {
	case proto.TypeLoginOK:
		fmt.Printf("Logged in as %s.\n", reply.Username)
	case proto.TypeError:
		return fmt.Errorf("login rejected: %s", reply.Message)
	default:
		return fmt.Errorf("unexpected reply type %q", reply.Type)
	}

	fmt.Println("Use /pm <user> <message> for private chat, /quit to exit.")

	go receiveLoop(dec)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}

		var frame *proto.Frame
		if strings.HasPrefix(line, "/pm ") {
			parts := strings.SplitN(line, " ", 3)
			if len(parts) < 3 {
				fmt.Println("usage: /pm <user> <message>")
				continue
			}
			frame = &proto.Frame{Type: proto.TypePrivate, Target: parts[1], Text: parts[2]}
		} else {
			frame = &proto.Frame{Type: proto.TypeGroup, Text: line}
		}

		if err := enc.Encode(frame); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return scanner.Err()
}

func receiveLoop(dec *proto.Decoder) {
	for {
		frame, err := dec.Decode()
		if err != nil {
			fmt.Println("Disconnected from server.")
			os.Exit(0)
		}
		printFrame(frame)
	}
}

func printFrame(f *proto.Frame) {
	switch f.Type {
	case proto.TypeGroup:
		fmt.Printf("[GROUP] %s: %s\n", f.From, f.Text)
	case proto.TypePrivate:
		fmt.Printf("[PRIVATE] %s: %s\n", f.From, f.Text)
	case proto.TypeSystem:
		fmt.Printf("[SYSTEM] %s\n", f.Text)
	case proto.TypeError:
		fmt.Printf("[ERROR] %s\n", f.Message)
	case proto.TypeHistoryResponse:
		printHistory(f)
	default:
		// Ignore frame types this client does not know.
	}
}

func printHistory(f *proto.Frame) {
	if len(f.Messages) == 0 {
		return
	}
	if f.Scope == proto.ScopePM {
		fmt.Printf("--- private history with %s ---\n", f.With)
	} else {
		fmt.Println("--- group history ---")
	}
	for _, entry := range f.Messages {
		when := time.Unix(entry.TS, 0).Format("15:04:05")
		fmt.Printf("%s %s: %s\n", when, entry.Sender, entry.Text)
	}
}
