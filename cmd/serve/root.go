package serve

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/wirekv/wirekv/cmd/util"
	"github.com/wirekv/wirekv/rpc/common"
	"github.com/wirekv/wirekv/rpc/server"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the wirekv server",
		Long:    `Start the wirekv server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is WIREKV_<flag> (e.g. WIREKV_LOG_LEVEL=debug)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:6380", cmdUtil.WrapString("The address on which the server will listen (host:port for tcp, a path for unix)"))

	key = "network"
	ServeCmd.PersistentFlags().String(key, "tcp", cmdUtil.WrapString("The network to listen on (tcp, unix)"))

	key = "shards"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Number of store partitions (0 = number of CPUs)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("Per-connection idle read timeout in seconds (0 = none)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional address to expose Prometheus metrics on (e.g. localhost:9100, empty = disabled)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY for accepted connections"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval for accepted connections (in seconds, 0 = kernel default)"))

	key = "tcp-linger"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The linger time for accepted connections (in seconds, 0 = kernel default)"))

	key = "read-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The size of the socket read buffer (in KB, 0 = kernel default)"))

	key = "write-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The size of the socket write buffer (in KB, 0 = kernel default)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Network = viper.GetString("network")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.NumShards = viper.GetInt("shards")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.TCP = common.TCPConf{
		NoDelay:         viper.GetBool("tcp-nodelay"),
		KeepAliveSec:    viper.GetInt("tcp-keepalive"),
		LingerSec:       viper.GetInt("tcp-linger"),
		ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
		WriteBufferSize: viper.GetInt("write-buffer") * 1024,
	}

	switch serveCmdConfig.Network {
	case "tcp", "unix":
	default:
		return fmt.Errorf("invalid network %s (expected tcp or unix)", serveCmdConfig.Network)
	}

	return common.InitLogging(serveCmdConfig.LogLevel)
}

// run starts the wirekv server
func run(_ *cobra.Command, _ []string) error {
	fmt.Println(serveCmdConfig.String())
	return server.New(serveCmdConfig).ListenAndServe()
}
