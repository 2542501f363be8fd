package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/dChain/cmd/chain"
	"github.com/ValentinKolb/dChain/cmd/lock"
	"github.com/ValentinKolb/dChain/cmd/serve"
	"github.com/ValentinKolb/dChain/cmd/util"
	"github.com/ValentinKolb/dChain/rpc/serializer"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dchain",
		Short: "distributed chain store",
		Long: fmt.Sprintf(`dChain (v%s)

A distributed, consistent store for chains of sequenced elements written in Go.
Chains are appended to atomically and can be compacted with a compare-and-swap
on their head, leveraging RAFT consensus for linearizability and fault tolerance.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dChain",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dChain v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(chain.ChainCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString(fmt.Sprintf("serializer to use (%s)", strings.Join(serializer.Names, ", "))))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
