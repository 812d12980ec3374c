package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/wirekv/wirekv/lib/protocol"
	"github.com/wirekv/wirekv/rpc/command"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session",
	Args:  cobra.NoArgs,
	RunE:  runRepl,
}

const replHelp = `Commands:
  PING
  GET <key>
  SET <key> <value>
  INCR <key>
  DECR <key>
  INCRBY <key> <n>
  DECRBY <key> <n>

A value that parses as an integer is stored as one, everything else
is stored as a string. Type '.help' to show this text, '.exit' to quit.`

func runRepl(_ *cobra.Command, _ []string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: "wirekv> ",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("wirekv client (type '.exit' to quit, '.help' for commands)")
	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case ".help":
			fmt.Println(replHelp)
			continue
		case ".exit":
			return nil
		}

		cmd, err := parseLine(line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}

		resp, err := rpcClient.Do(cmd)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(resp)
	}
}

// parseLine turns one interactive line into a command. Command names are
// case-insensitive; keys and values are taken verbatim.
func parseLine(line string) (command.Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	name := strings.ToUpper(fields[0])
	operands := fields[1:]

	arity := func(want int) error {
		if len(operands) != want {
			return fmt.Errorf("%s expects %d operands, got %d", name, want, len(operands))
		}
		return nil
	}

	switch name {
	case "PING":
		if err := arity(0); err != nil {
			return nil, err
		}
		return command.Ping{}, nil
	case "GET":
		if err := arity(1); err != nil {
			return nil, err
		}
		return command.Get{Key: []byte(operands[0])}, nil
	case "SET":
		if err := arity(2); err != nil {
			return nil, err
		}
		return command.Set{Key: []byte(operands[0]), Value: parseValue(operands[1])}, nil
	case "INCR":
		if err := arity(1); err != nil {
			return nil, err
		}
		return command.Incr{Key: []byte(operands[0])}, nil
	case "DECR":
		if err := arity(1); err != nil {
			return nil, err
		}
		return command.Decr{Key: []byte(operands[0])}, nil
	case "INCRBY":
		if err := arity(2); err != nil {
			return nil, err
		}
		by, err := parseMagnitude(operands[1])
		if err != nil {
			return nil, err
		}
		return command.IncrBy{Key: []byte(operands[0]), By: by}, nil
	case "DECRBY":
		if err := arity(2); err != nil {
			return nil, err
		}
		by, err := parseMagnitude(operands[1])
		if err != nil {
			return nil, err
		}
		return command.DecrBy{Key: []byte(operands[0]), By: by}, nil
	default:
		return nil, fmt.Errorf("unknown command %s", name)
	}
}

// parseValue maps an interactive token to a protocol value. Integers become
// integer values, everything else a string.
func parseValue(s string) protocol.Value {
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return protocol.Positive(n)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n < 0 {
		return protocol.Negative(n)
	}
	return protocol.String(s)
}
