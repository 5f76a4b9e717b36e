package main

import (
	"context"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payso.org/internal/config"
	"payso.org/internal/escrow"
	"payso.org/internal/escrow/evm"
	"payso.org/internal/httpapi"
	"payso.org/internal/obs"
	"payso.org/internal/store/pg"
	"payso.org/internal/tokens"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("PAYSO_COMMIT"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var cache escrow.Cache = escrow.NewMemCache()
	var probe httpapi.ReadyProbe
	if cfg.PGDSN != "" {
		store, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open cache db: %v", err)
		}
		defer store.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := store.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatalf("cache schema: %v", err)
		}
		cancel()
		cache = store
		probe = httpapi.ReadyProbe{DB: store.DB()}
	}

	var (
		reader escrow.Reader
		toks   escrow.TokenReader
		writer escrow.Writer
		signer escrow.Signer
	)
	escrowAddr := escrow.Address(cfg.EscrowAddress)

	switch cfg.Mode {
	case config.ModeMemory:
		// Demo ledger: the main employer is a fixed dev account with a
		// funded USDC balance.
		main := escrow.Address("0x00000000000000000000000000000000000000a1")
		usdc := escrow.Address("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
		mem := escrow.NewMemory(main)
		mem.Credit(usdc, main, big.NewInt(1_000_000_000_000))
		escrowAddr = escrow.Address("0x00000000000000000000000000000000000000e5")
		reader, toks, writer, signer = mem, mem, mem, escrow.StaticSigner{}
	default:
		parsed, err := escrow.ParseAddress(cfg.EscrowAddress)
		if err != nil {
			log.Fatalf("escrow address: %v", err)
		}
		escrowAddr = parsed
		node := evm.NewClient(cfg.NodeRPCURL, escrowAddr)
		wallet := evm.NewWallet(cfg.WalletRPCURL, node, escrowAddr)
		reader, toks, writer, signer = node, node, wallet, wallet
	}

	cached := escrow.NewCachedReader(reader, cache)
	client := escrow.NewClient(cached, toks, writer, signer, cached, escrowAddr)

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	go escrow.NewRefresher(cached, cfg.PollInterval).Run(refreshCtx)

	api := httpapi.New(probe, version, client, tokens.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second, // write confirmations can take a while
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting payso-api %s on %s (mode=%s)", version, srv.Addr, cfg.Mode)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
