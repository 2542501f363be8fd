package lock

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/dChain/cmd/util"
	"github.com/ValentinKolb/dChain/lib/lockmgr"
	"github.com/ValentinKolb/dChain/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcLockMgr     lockmgr.ILockManager
	acquireTimeout time.Duration
	acquireWait    time.Duration
	retryInterval  time.Duration

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:               "lock",
		Short:             "Perform lock operations",
		PersistentPreRunE: setupLockClient,
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire [key]",
		Short: "Acquire a lock",
		Long:  "Acquire a lock. Keys that are no decimal number are hashed. With --wait the command retries until the lock is acquired or the wait time is over.",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release [key] [ownerID]",
		Short: "Release a previously acquired lock",
		Long:  "Release a lock using the key and owner ID. The owner ID is the hex string returned by the acquire command.",
		Args:  cobra.ExactArgs(2),
		RunE:  runRelease,
	}

	// infoCmd represents the info command
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints the database info of the lock shard",
		Args:  cobra.NoArgs,
		RunE:  runInfo,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add subcommands to lock command
	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)
	LockCommands.AddCommand(infoCmd)

	// Add common RPC flags to the lock command
	util.SetupRPCClientFlags(LockCommands)

	// Set default shard ID for lock operations (different from chain default)
	LockCommands.PersistentFlags().Int("shard", 200, util.WrapString("ID of the shard to connect to"))

	// Add flags specific to acquire
	acquireCmd.Flags().DurationVar(&acquireTimeout, "lock-timeout", 30*time.Second, util.WrapString("Lock timeout after which the lock can be taken over (0 for no timeout)"))
	acquireCmd.Flags().DurationVar(&acquireWait, "wait", 0, util.WrapString("How long to retry a held lock (0 tries once)"))
	acquireCmd.Flags().DurationVar(&retryInterval, "retry-interval", 100*time.Millisecond, util.WrapString("Pause between two attempts of --wait"))
}

// setupLockClient initializes the lock manager client
func setupLockClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
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

	// Create the lock manager client
	rpcLockMgr, err = client.NewRPCLockMgr(
		shardId,
		*config,
		t,
		s,
	)

	return err
}

// runAcquire handles the acquire lock command
func runAcquire(_ *cobra.Command, args []string) error {
	key := util.ParseKey(args[0])
	deadline := time.Now().Add(acquireWait)

	for attempt := 1; ; attempt++ {
		acquired, ownerID, err := rpcLockMgr.AcquireLock(key, acquireTimeout)
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %v", err)
		}

		if acquired {
			fmt.Printf("acquired=true, ownerId=%s, attempts=%d\n", hex.EncodeToString(ownerID), attempt)
			return nil
		}

		if !time.Now().Add(retryInterval).Before(deadline) {
			fmt.Printf("acquired=false, attempts=%d\n", attempt)
			return nil
		}
		time.Sleep(retryInterval)
	}
}

// runRelease handles the release lock command
func runRelease(_ *cobra.Command, args []string) error {
	key := util.ParseKey(args[0])
	ownerIDHex := args[1]

	// Convert hex string owner ID back to bytes
	ownerID, err := hex.DecodeString(ownerIDHex)
	if err != nil {
		return fmt.Errorf("invalid owner ID format: %v", err)
	}

	// Attempt to release the lock
	released, err := rpcLockMgr.ReleaseLock(key, ownerID)

	if err != nil {
		return fmt.Errorf("failed to release lock: %v", err)
	}

	fmt.Printf("released=%v\n", released)

	return nil
}

// runInfo prints the database info of the lock shard. Lock shards answer
// info requests of the chain protocol, so a chain client is used.
func runInfo(_ *cobra.Command, _ []string) error {
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}
	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	rpcStore, err := client.NewRPCStore(util.GetShardID(), *util.GetClientConfig(), t, s)
	if err != nil {
		return err
	}

	info, err := rpcStore.GetDBInfo()
	if err != nil {
		return fmt.Errorf("failed to get info: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
