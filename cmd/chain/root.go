package chain

import (
	"github.com/ValentinKolb/dChain/cmd/util"
	"github.com/ValentinKolb/dChain/lib/store"
	"github.com/ValentinKolb/dChain/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcStore   store.IServerStore
	valueCodec util.ValueCodec

	// ChainCommands represents the chain command group
	ChainCommands = &cobra.Command{
		Use:               "chain",
		Short:             "Perform chain store operations",
		PersistentPreRunE: setupChainClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the chain command
	util.SetupRPCClientFlags(ChainCommands)

	// Set default shard ID for chain operations (different from Lock default)
	ChainCommands.PersistentFlags().Int("shard", 100, util.WrapString("ID of the shard to connect to"))

	ChainCommands.PersistentFlags().String("codec", "string", util.WrapString("How values are encoded (string, int64, json, msgpack, cbor). The structured codecs expect json objects"))

	// Add subcommands
	ChainCommands.AddCommand(getCmd)
	ChainCommands.AddCommand(appendCmd)
	ChainCommands.AddCommand(getAndAppendCmd)
	ChainCommands.AddCommand(replaceAtHeadCmd)
	ChainCommands.AddCommand(compactCmd)
	ChainCommands.AddCommand(infoCmd)
	ChainCommands.AddCommand(statsCmd)
	ChainCommands.AddCommand(perfTestCmd)
}

// setupChainClient initializes the RPC store client
func setupChainClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	if valueCodec, err = util.GetValueCodec(viper.GetString("codec")); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	shardId := util.GetShardID()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the chain store client
	rpcStore, err = client.NewRPCStore(
		shardId,
		*config,
		t,
		s,
	)

	return err
}
