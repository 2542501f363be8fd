package chain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dChain/cmd/util"
	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/rpc/client"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Prints the chain of a key",
		Long:  "Prints the chain of a key, one element per line as <id> <value>. Keys that are no decimal number are hashed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rpcStore.Get(util.ParseKey(args[0]))
			if err != nil {
				return err
			}
			return printChain(c)
		},
	}
	appendCmd = &cobra.Command{
		Use:   "append [key] [value]",
		Short: "Appends a value to the chain of a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := valueCodec.Parse(args[1])
			if err != nil {
				return err
			}
			if err := rpcStore.Append(util.ParseKey(args[0]), payload); err != nil {
				return err
			}
			fmt.Println("appended successfully")
			return nil
		},
	}
	getAndAppendCmd = &cobra.Command{
		Use:   "get-and-append [key] [value]",
		Short: "Appends a value and prints the chain as it was before",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := valueCodec.Parse(args[1])
			if err != nil {
				return err
			}
			prior, err := rpcStore.GetAndAppend(util.ParseKey(args[0]), payload)
			if err != nil {
				return err
			}
			return printChain(prior)
		},
	}
	replaceAtHeadCmd = &cobra.Command{
		Use:   "replace-at-head [key] --expect [ids] [values...]",
		Short: "Replaces the head of a chain",
		Long: `Replaces the elements with the expected ids at the head of the chain with the given values.
Elements appended after the expected head are kept. If the chain no longer starts with the
expected ids nothing happens (the operation still succeeds, read the chain to find out).
An empty --expect prepends the values.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expectFlag, _ := cmd.Flags().GetString("expect")
			expect, err := parseIDs(expectFlag)
			if err != nil {
				return err
			}
			update, err := parseValues(args[1:])
			if err != nil {
				return err
			}
			if err := rpcStore.ReplaceAtHead(util.ParseKey(args[0]), expect, update); err != nil {
				return err
			}
			fmt.Println("replace-at-head sent successfully")
			return nil
		},
	}
	compactCmd = &cobra.Command{
		Use:   "compact [key] [value]",
		Short: "Replaces the current chain of a key with a single value",
		Long:  "Reads the chain of a key and replaces exactly the elements read with the given value. Elements appended concurrently are kept.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := util.ParseKey(args[0])
			update, err := parseValues(args[1:])
			if err != nil {
				return err
			}
			current, err := rpcStore.Get(key)
			if err != nil {
				return err
			}
			if err := rpcStore.ReplaceAtHead(key, current, update); err != nil {
				return err
			}
			after, err := rpcStore.Get(key)
			if err != nil {
				return err
			}
			return printChain(after)
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints the database info of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetDBInfo()
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints the operation statistics the server collected for the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := util.GetSerializer()
			if err != nil {
				return err
			}
			t, err := util.GetTransport()
			if err != nil {
				return err
			}
			stats, err := client.NewRPCStats(util.GetShardID(), *util.GetClientConfig(), t, s)
			if err != nil {
				return err
			}
			defer stats.Close()
			snapshot, err := stats.Snapshot()
			if err != nil {
				return err
			}
			return printJSON(snapshot)
		},
	}
)

func init() {
	replaceAtHeadCmd.Flags().String("expect", "", util.WrapString("Comma separated ids of the expected head (as printed by get)"))
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// printChain prints one element per line
func printChain(c chain.Chain) error {
	if c.IsEmpty() {
		fmt.Println("(empty chain)")
		return nil
	}
	for e := range c.All() {
		value, err := valueCodec.Format(e.Payload())
		if err != nil {
			value = fmt.Sprintf("<undecodable: %v>", err)
		}
		fmt.Printf("%d\t%s\n", e.ID(), value)
	}
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// parseIDs parses a comma separated id list into an expected head
func parseIDs(s string) (chain.Chain, error) {
	if strings.TrimSpace(s) == "" {
		return chain.Empty(), nil
	}
	parts := strings.Split(s, ",")
	ids := make([]chain.SequenceID, len(parts))
	for i, part := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return chain.Empty(), fmt.Errorf("invalid id %q: %w", part, err)
		}
		ids[i] = chain.SequenceID(id)
	}
	return chain.FromIDs(ids), nil
}

// parseValues encodes values into an update chain
func parseValues(values []string) (chain.Chain, error) {
	payloads := make([][]byte, len(values))
	for i, v := range values {
		p, err := valueCodec.Parse(v)
		if err != nil {
			return chain.Empty(), err
		}
		payloads[i] = p
	}
	return chain.FromPayloads(payloads...), nil
}
