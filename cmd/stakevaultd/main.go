package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"stakevault/config"
	"stakevault/core/events"
	"stakevault/core/types"
	"stakevault/crypto"
	"stakevault/native/bank"
	nativecommon "stakevault/native/common"
	"stakevault/native/staking"
	"stakevault/observability/logging"
	"stakevault/rpc"
	stakingstate "stakevault/state/staking"
	"stakevault/storage"
)

const envName = "STAKEVAULT_ENV"

// moduleAddress derives the custody account that holds staked principal and
// the reward reserve. It has no known private key.
func moduleAddress() crypto.Address {
	hash := gethcrypto.Keccak256([]byte("stakevault/staking-module"))
	return crypto.MustNewAddress(crypto.VaultPrefix, hash[12:])
}

// logEmitter forwards engine events to the structured logger so operators can
// tail state changes without an indexer.
type logEmitter struct {
	log *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	typed, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		l.log.Info("engine event", "type", evt.EventType())
		return
	}
	payload := typed.Event()
	if payload == nil {
		return
	}
	attrs := make([]any, 0, 2+2*len(payload.Attributes))
	attrs = append(attrs, "type", payload.Type)
	for key, value := range payload.Attributes {
		attrs = append(attrs, key, value)
	}
	l.log.Info("engine event", attrs...)
}

// runKeygen prints a fresh operator key pair, or the address for an existing
// hex-encoded private key when one is supplied, and returns the address.
func runKeygen(existing string) (string, error) {
	var key *crypto.PrivateKey
	var err error
	if existing != "" {
		raw, decodeErr := hex.DecodeString(strings.TrimPrefix(existing, "0x"))
		if decodeErr != nil {
			return "", fmt.Errorf("decode private key hex: %w", decodeErr)
		}
		key, err = crypto.PrivateKeyFromBytes(raw)
	} else {
		key, err = crypto.GeneratePrivateKey()
	}
	if err != nil {
		return "", err
	}
	addr := key.PubKey().Address().String()
	fmt.Printf("address:     %s\n", addr)
	if existing == "" {
		fmt.Printf("private key: %s\n", hex.EncodeToString(key.Bytes()))
	}
	return addr, nil
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	keygen := flag.Bool("keygen", false, "Generate an operator key pair and exit")
	keyinfo := flag.String("keyinfo", "", "Print the address for a hex private key and exit")
	flag.Parse()

	if *keygen || *keyinfo != "" {
		if _, err := runKeygen(*keyinfo); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	env := strings.TrimSpace(os.Getenv(envName))

	cfg, err := config.Load(*configFile)
	if err != nil {
		logging.Setup("stakevaultd", env, logging.Options{})
		slog.Error("failed to load configuration", "path", *configFile, "error", err)
		os.Exit(1)
	}

	log := logging.Setup("stakevaultd", env, logging.Options{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	owner, err := cfg.Owner()
	if err != nil {
		log.Error("invalid owner address", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		log.Error("failed to open database", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := stakingstate.NewStore(db)
	ledger := bank.NewLedger(store)
	pauses := nativecommon.NewPauseSet()

	engine := staking.NewEngine(moduleAddress(), owner)
	engine.SetState(store)
	engine.SetLedger(ledger)
	engine.SetPauses(pauses)
	engine.SetEmitter(logEmitter{log: log.With("component", "staking")})

	genesis, err := cfg.StakingGenesis()
	if err != nil {
		log.Error("invalid staking genesis parameters", "error", err)
		os.Exit(1)
	}
	if err := engine.InitGenesis(genesis); err != nil {
		log.Error("failed to initialise staking pool", "error", err)
		os.Exit(1)
	}

	server := rpc.NewServer(engine, pauses, log.With("component", "rpc"), rpc.Options{
		RatePerMinute: cfg.RPCRatePerMinute,
		Burst:         cfg.RPCRateBurst,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("rpc server listening", "address", cfg.RPCAddress, "network", cfg.NetworkName)
		errCh <- server.Start(cfg.RPCAddress)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("rpc server shutdown failed", "error", err)
			os.Exit(1)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("rpc server stopped", "error", err)
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("rpc server stopped", "error", err)
			os.Exit(1)
		}
	}
}
