// Package config loads the conductor's configuration from the
// environment variables named in spec.md §6. Config loading itself is
// out of scope of this spec's core; this is a deliberately small,
// dependency-free loader rather than a full flags/subcommand surface.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/MuhtasimTanmoy/conductor/rollup"
)

// Config is the conductor's full runtime configuration.
type Config struct {
	SequencerURL        string
	CelestiaNodeURL     string
	CelestiaBearerToken string

	ExecutionRPCURL      string
	ExecutionCommitLevel rollup.CommitLevel

	// RollupID selects which rollup's transactions this conductor
	// cares about, both for filtering sequencer blocks and for deriving
	// the Celestia rollup namespace.
	RollupID []byte

	EnableOptimism                bool
	EthereumL1URL                 string
	OptimismPortalContractAddress [20]byte
	InitialEthereumL1BlockHeight  uint64

	// CelestiaStartHeight optionally overrides the DA reader's start
	// height (see SPEC_FULL.md Open Question decisions). Zero means
	// "use the current Celestia network head", the spec's default.
	CelestiaStartHeight uint64

	LogLevel string
}

// ExitConfigError is the process exit code used when configuration
// cannot be read (spec.md §6): sysexits EX_CONFIG.
const ExitConfigError = 78

// ExitInitError is used for any other initialization failure.
const ExitInitError = 1

// ExitOK is used on clean shutdown.
const ExitOK = 0

// Load reads and validates the conductor's configuration from the
// process environment.
func Load() (Config, error) {
	cfg := Config{
		SequencerURL:        os.Getenv("sequencer_url"),
		CelestiaNodeURL:     os.Getenv("celestia_node_url"),
		CelestiaBearerToken: os.Getenv("celestia_bearer_token"),
		ExecutionRPCURL:     os.Getenv("execution_rpc_url"),
		EthereumL1URL:       os.Getenv("ethereum_l1_url"),
		LogLevel:            orDefault(os.Getenv("log"), "info"),
	}

	if cfg.SequencerURL == "" {
		return Config{}, fmt.Errorf("sequencer_url must be set")
	}
	if cfg.ExecutionRPCURL == "" {
		return Config{}, fmt.Errorf("execution_rpc_url must be set")
	}

	rollupIDHex := os.Getenv("rollup_id")
	if rollupIDHex == "" {
		return Config{}, fmt.Errorf("rollup_id must be set")
	}
	rollupID, err := hex.DecodeString(trim0x(rollupIDHex))
	if err != nil {
		return Config{}, fmt.Errorf("rollup_id must be hex: %w", err)
	}
	cfg.RollupID = rollupID

	levelStr := os.Getenv("execution_commit_level")
	level, ok := rollup.ParseCommitLevel(levelStr)
	if !ok {
		return Config{}, fmt.Errorf("execution_commit_level must be one of SoftOnly, FirmOnly, SoftAndFirm, got %q", levelStr)
	}
	cfg.ExecutionCommitLevel = level

	if !level.IsSoftOnly() {
		if cfg.CelestiaNodeURL == "" {
			return Config{}, fmt.Errorf("celestia_node_url must be set unless execution_commit_level is SoftOnly")
		}
	}

	if v := os.Getenv("enable_optimism"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("enable_optimism must be a bool: %w", err)
		}
		cfg.EnableOptimism = enabled
	}

	if cfg.EnableOptimism {
		if cfg.EthereumL1URL == "" {
			return Config{}, fmt.Errorf("ethereum_l1_url must be set when enable_optimism is true")
		}
		addrHex := os.Getenv("optimism_portal_contract_address")
		addrBytes, err := hex.DecodeString(trim0x(addrHex))
		if err != nil {
			return Config{}, fmt.Errorf("optimism_portal_contract_address must be hex: %w", err)
		}
		if len(addrBytes) != 20 {
			return Config{}, fmt.Errorf("optimism_portal_contract_address must be 20 bytes, got %d", len(addrBytes))
		}
		copy(cfg.OptimismPortalContractAddress[:], addrBytes)

		heightStr := os.Getenv("initial_ethereum_l1_block_height")
		height, err := strconv.ParseUint(heightStr, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("initial_ethereum_l1_block_height must be a uint64: %w", err)
		}
		cfg.InitialEthereumL1BlockHeight = height
	}

	if v := os.Getenv("celestia_start_height"); v != "" {
		height, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("celestia_start_height must be a uint64: %w", err)
		}
		cfg.CelestiaStartHeight = height
	}

	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
