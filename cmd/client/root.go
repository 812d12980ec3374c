package client

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	cmdUtil "github.com/wirekv/wirekv/cmd/util"
	"github.com/wirekv/wirekv/rpc/client"
	"github.com/wirekv/wirekv/rpc/command"
)

var (
	rpcClient *client.Client

	// ClientCommands represents the client command group
	ClientCommands = &cobra.Command{
		Use:               "client",
		Short:             "Send commands to a wirekv server",
		PersistentPreRunE: setupClient,
		PersistentPostRun: teardownClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// Add common connection flags to the client command
	cmdUtil.SetupClientFlags(ClientCommands)

	// Add subcommands
	ClientCommands.AddCommand(pingCmd)
	ClientCommands.AddCommand(getCmd)
	ClientCommands.AddCommand(setCmd)
	ClientCommands.AddCommand(incrCmd)
	ClientCommands.AddCommand(decrCmd)
	ClientCommands.AddCommand(incrByCmd)
	ClientCommands.AddCommand(decrByCmd)
	ClientCommands.AddCommand(replCmd)
}

// setupClient dials the server with the configured connection parameters
func setupClient(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	c, err := client.Dial(cmdUtil.GetClientConfig())
	if err != nil {
		return err
	}
	rpcClient = c
	return nil
}

func teardownClient(_ *cobra.Command, _ []string) {
	if rpcClient != nil {
		_ = rpcClient.Close()
	}
}

// runOne sends a single command and prints the response
func runOne(cmd command.Command) error {
	resp, err := rpcClient.Do(cmd)
	if err != nil {
		return err
	}
	fmt.Println(resp)
	return nil
}

var (
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runOne(command.Ping{})
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runOne(command.Get{Key: []byte(args[0])})
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key and prints the displaced value",
		Long:  "Sets the value for a key. A value that parses as an integer is stored as one, everything else is stored as a string. Prints the value the key held before.",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runOne(command.Set{Key: []byte(args[0]), Value: parseValue(args[1])})
		},
	}
	incrCmd = &cobra.Command{
		Use:   "incr [key]",
		Short: "Adds one to the counter stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runOne(command.Incr{Key: []byte(args[0])})
		},
	}
	decrCmd = &cobra.Command{
		Use:   "decr [key]",
		Short: "Subtracts one from the counter stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runOne(command.Decr{Key: []byte(args[0])})
		},
	}
	incrByCmd = &cobra.Command{
		Use:   "incrby [key] [n]",
		Short: "Adds n to the counter stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			by, err := parseMagnitude(args[1])
			if err != nil {
				return err
			}
			return runOne(command.IncrBy{Key: []byte(args[0]), By: by})
		},
	}
	decrByCmd = &cobra.Command{
		Use:   "decrby [key] [n]",
		Short: "Subtracts n from the counter stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			by, err := parseMagnitude(args[1])
			if err != nil {
				return err
			}
			return runOne(command.DecrBy{Key: []byte(args[0]), By: by})
		},
	}
)

func parseMagnitude(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("step must be a number: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("step must not be negative: %d", n)
	}
	return n, nil
}
