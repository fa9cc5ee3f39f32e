// shielded-replay - replays shielded block files into a persistent coin view and wallet
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/colorfulnotion/shieldedpool/common"
	log "github.com/colorfulnotion/shieldedpool/log"
	"github.com/colorfulnotion/shieldedpool/types"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

func main() {
	if Commit == "none" {
		Commit = common.GetCommitHash()
	}
	var rootCmd = &cobra.Command{
		Use:   "shielded-replay",
		Short: "Shielded pool block replay and inspection",
		Long: `Connects blocks from a JSON file to a leveldb-backed coin view while a
wallet follows along, then reports the resulting anchors, nullifiers and witnesses.`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	var (
		configPath        string
		dataDir           string
		logLevel          string
		debugModules      string
		telemetryEndpoint string
	)

	loadConfig := func(cmd *cobra.Command) (*types.Config, error) {
		cfg := types.DefaultConfig()
		if configPath != "" {
			loaded, err := types.LoadConfig(configPath)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
		flags := cmd.Flags()
		if flags.Changed("data-dir") {
			cfg.DataDir = dataDir
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if flags.Changed("debug") {
			cfg.DebugModules = debugModules
		}
		if flags.Changed("telemetry-endpoint") {
			cfg.TelemetryEndpoint = telemetryEndpoint
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := log.InitLogger(cfg.LogLevel); err != nil {
			return nil, err
		}
		log.EnableModules(cfg.DebugModules)
		return cfg, nil
	}

	var (
		blocksPath string
		ivkSeeds   []string
		showTree   bool
		verify     bool
		witnessOut string
	)

	// Replay command - connects a block file and flushes the view
	var replayCmd = &cobra.Command{
		Use:   "replay",
		Short: "Connect blocks from a JSON file",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig(cmd)
			if err != nil {
				fmt.Printf("Config error: %v\n", err)
				os.Exit(1)
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := replayOptions{
				BlocksPath:   blocksPath,
				IVKSeeds:     ivkSeeds,
				ShowTree:     showTree,
				VerifyRescan: verify,
				WitnessOut:   witnessOut,
			}
			if err := runReplay(ctx, cfg, opts); err != nil {
				fmt.Printf("Replay failed: %v\n", err)
				os.Exit(1)
			}
		},
	}
	replayCmd.Flags().StringVar(&blocksPath, "blocks", "blocks.json", "JSON file holding the blocks to connect, in order")
	replayCmd.Flags().StringSliceVar(&ivkSeeds, "ivk", nil, "Seeds of the incoming viewing keys the wallet tracks")
	replayCmd.Flags().BoolVar(&showTree, "tree", false, "Print the wallet witness cache after replay")
	replayCmd.Flags().BoolVar(&verify, "verify-rescan", false, "Rescan a fresh wallet from genesis and diff it against the live one")
	replayCmd.Flags().StringVar(&witnessOut, "export-witnesses", "", "Write the witnesses of unspent wallet notes to this JSON file")

	// Inspect command - prints what a data dir holds
	var inspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Print the persisted best anchor, best block and counts",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig(cmd)
			if err != nil {
				fmt.Printf("Config error: %v\n", err)
				os.Exit(1)
			}
			if err := runInspect(cfg); err != nil {
				fmt.Printf("Inspect failed: %v\n", err)
				os.Exit(1)
			}
		},
	}

	var witnessFile string

	// Verify-witnesses command - checks an exported witness file against the data dir
	var verifyWitnessesCmd = &cobra.Command{
		Use:   "verify-witnesses",
		Short: "Check exported note witnesses against the persisted anchors",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig(cmd)
			if err != nil {
				fmt.Printf("Config error: %v\n", err)
				os.Exit(1)
			}
			if err := runVerifyWitnesses(cfg, witnessFile); err != nil {
				fmt.Printf("Verification failed: %v\n", err)
				os.Exit(1)
			}
		},
	}
	verifyWitnessesCmd.Flags().StringVar(&witnessFile, "file", "witnesses.json", "Witness file written by replay --export-witnesses")

	var (
		genCount   int
		genTxs     int
		genOutputs int
		genSeed    int64
		genOut     string
	)

	// Generate command - writes a synthetic block file
	var generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic block file for replay",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig(cmd)
			if err != nil {
				fmt.Printf("Config error: %v\n", err)
				os.Exit(1)
			}
			params := generateParams{
				Blocks:     genCount,
				TxsPerBlk:  genTxs,
				OutputsPer: genOutputs,
				Seed:       genSeed,
				Recipients: ivkSeeds,
				Depth:      cfg.TreeDepth,
			}
			if err := runGenerate(params, genOut); err != nil {
				fmt.Printf("Generate failed: %v\n", err)
				os.Exit(1)
			}
		},
	}
	generateCmd.Flags().IntVar(&genCount, "count", 10, "Number of blocks")
	generateCmd.Flags().IntVar(&genTxs, "txs", 3, "Shielded transactions per block")
	generateCmd.Flags().IntVar(&genOutputs, "outputs", 2, "Outputs per transaction")
	generateCmd.Flags().Int64Var(&genSeed, "seed", 1, "Random seed")
	generateCmd.Flags().StringVar(&genOut, "out", "blocks.json", "Output file")
	generateCmd.Flags().StringSliceVar(&ivkSeeds, "ivk", nil, "Seeds of the viewing keys some outputs are sent to")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "JSON config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./shielded-data", "Directory of the leveldb coin view")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, crit)")
	rootCmd.PersistentFlags().StringVar(&debugModules, "debug", "", "Comma separated modules with debug logging (tree_mod,coins_mod,store_mod,wallet_mod,chain_mod)")
	rootCmd.PersistentFlags().StringVar(&telemetryEndpoint, "telemetry-endpoint", "", "OTLP/HTTP trace endpoint, host:port")

	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(verifyWitnessesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
