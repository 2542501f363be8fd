package util

import (
	"fmt"
	"strings"

	dbutil "github.com/ValentinKolb/dChain/lib/db/util"
	"github.com/ValentinKolb/dChain/rpc/common"
	"github.com/ValentinKolb/dChain/rpc/serializer"
	"github.com/ValentinKolb/dChain/rpc/transport"
	"github.com/ValentinKolb/dChain/rpc/transport/http"
	"github.com/ValentinKolb/dChain/rpc/transport/tcp"
	"github.com/ValentinKolb/dChain/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix of all environment variables (e.g. DCHAIN_TIMEOUT)
	EnvPrefix = "dchain"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds the flags every command talking to a dchain server shares
func SetupRPCClientFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.Int("timeout", 10, WrapString("Seconds to wait for the server to answer a chain or lock operation"))
	flags.String("transport-endpoints", "http://localhost:8080", WrapString("Comma-separated addresses of dchain servers. Requests are spread over all endpoints"))
	flags.Int("transport-conn-per-endpoint", 1, WrapString("Connections opened to every endpoint (ignored for http)"))
	flags.Int("transport-retries", 3, WrapString("Attempts per request before the operation fails. Appends are retried too and may be stored twice"))
	flags.Int("transport-write-buffer", 512, WrapString("Socket write buffer in KB (ignored for http)"))
	flags.Int("transport-read-buffer", 512, WrapString("Socket read buffer in KB (ignored for http)"))
	flags.Bool("transport-tcp-nodelay", true, WrapString("Set TCP_NODELAY on tcp connections"))
	flags.Int("transport-tcp-keepalive", 0, WrapString("Keepalive interval of tcp connections in seconds (0 = os default)"))
	flags.Int("transport-tcp-linger", 0, WrapString("Linger time of tcp connections in seconds"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		Transport: common.ClientTransportConfig{
			RetryCount:             viper.GetInt("transport-retries"),
			Endpoints:              splitEndpoints(viper.GetString("transport-endpoints")),
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
	}
}

// splitEndpoints splits a comma-separated endpoint list, dropping blanks
func splitEndpoints(list string) []string {
	var endpoints []string
	for _, ep := range strings.Split(list, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			endpoints = append(endpoints, ep)
		}
	}
	return endpoints
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.New(viper.GetString("serializer"))
}

// GetTransport creates transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerTransport creates the server transport based on configuration
func GetServerTransport() (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		return tcp.NewTCPDefaultServerTransport(), nil
	case "unix":
		return unix.NewUnixDefaultServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// ParseKey converts a command line key to a chain key (see dbutil.ParseKey)
func ParseKey(s string) uint64 {
	return dbutil.ParseKey(s)
}

// GetShardID retrieves the configured shard ID
func GetShardID() uint64 {
	return viper.GetUint64("shard")
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
