package main

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/jinzhu/copier"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/puncture-ln/punctured/config"
	"github.com/puncture-ln/punctured/internal/eventbus"
	"github.com/puncture-ln/punctured/internal/identity"
	"github.com/puncture-ln/punctured/internal/ledger"
	"github.com/puncture-ln/punctured/internal/lnnode"
	"github.com/puncture-ln/punctured/internal/orchestrator"
	"github.com/puncture-ln/punctured/internal/reactor"
	"github.com/puncture-ln/punctured/internal/session"
	"github.com/puncture-ln/punctured/pkg/cache"
	"github.com/puncture-ln/punctured/pkg/logger"
)

var Cfg config.DaemonConfig

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := logger.Init(logger.GetEnv()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	_, filename, _, _ := runtime.Caller(0)
	root := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	configPath := config.Path(root).Join("config.toml")
	if err := config.Load(configPath, &Cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if (Cfg.BitcoindRPCURL == "") == (Cfg.EsploraRPCURL == "") {
		return fmt.Errorf("exactly one of bitcoind_rpc_url or esplora_rpc_url must be set")
	}
	if Cfg.LSPS1NodeID != "" || Cfg.LSPS1SocketAddress != "" || Cfg.LSPS1Token != "" {
		logger.Info("liquidity-source flags present but unused by this daemon",
			zap.String("lsp1_node_id", Cfg.LSPS1NodeID))
	}

	id, err := identity.LoadOrGenerate(Cfg.DataDir, Cfg.SecretPassphrase)
	if err != nil {
		return fmt.Errorf("failed to load or generate daemon identity: %w", err)
	}
	logger.Info("daemon identity ready", zap.String("public_key", id.PublicKeyHex()))

	store, err := ledger.Open(ledger.Config{Path: filepath.Join(Cfg.DataDir, "punctured.db")})
	if err != nil {
		return fmt.Errorf("failed to open ledger store: %w", err)
	}
	defer store.Close()

	var redisCfg cache.Config
	if err := copier.Copy(&redisCfg, &Cfg.Redis); err != nil {
		return fmt.Errorf("failed to copy redis config: %w", err)
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Host + ":" + redisCfg.Port,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	defer redisClient.Close()

	bus := eventbus.New(redisClient, eventbus.DefaultCapacity)
	offerCache := cache.New(redisClient)

	var lndCfg lnnode.LNDConfig
	if err := copier.Copy(&lndCfg, &Cfg.LND); err != nil {
		return fmt.Errorf("failed to copy lnd config: %w", err)
	}
	node, err := lnnode.NewLND(lndCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to lightning node: %w", err)
	}

	var orchCfg orchestrator.Config
	if err := copier.Copy(&orchCfg, &Cfg); err != nil {
		return fmt.Errorf("failed to copy orchestrator config: %w", err)
	}
	orchCfg.Network = Cfg.BitcoinNetwork

	orch := orchestrator.New(store, node, bus, orchCfg).WithOfferCache(offerCache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := node.Start(ctx); err != nil {
		return fmt.Errorf("failed to start lightning node event stream: %w", err)
	}
	defer node.Stop()

	r := reactor.New(node, orch)
	reactorDone := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(reactorDone)
	}()

	listener, err := net.Listen("tcp", Cfg.ClientBind)
	if err != nil {
		return fmt.Errorf("failed to bind client listener on %s: %w", Cfg.ClientBind, err)
	}

	tlsConfig, err := selfSignedServerTLSConfig(id)
	if err != nil {
		listener.Close()
		return fmt.Errorf("failed to build tls config: %w", err)
	}

	transport := session.NewTLSTransport(listener, tlsConfig)
	srv := session.NewServer(transport, orch, store, bus, Cfg.MaxConnectionsPerUser)

	serverDone := make(chan struct{})
	go func() {
		if err := srv.Run(ctx); err != nil {
			logger.Error("session server stopped with error", zap.Error(err))
		}
		close(serverDone)
	}()

	logger.Info("punctured daemon started",
		zap.String("client_bind", Cfg.ClientBind),
		zap.String("bitcoin_network", Cfg.BitcoinNetwork),
		zap.String("daemon_name", Cfg.DaemonName),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	// Shutdown ordering: cancel first so sessions and the reactor observe
	// the same token and unwind independently; then close the listener so
	// no new sessions are accepted; then wait for both loops to exit
	// before the node and store are torn down by the deferred Close calls.
	cancel()
	listener.Close()
	<-serverDone
	<-reactorDone

	logger.Info("punctured daemon shut down gracefully")
	return nil
}

// selfSignedServerTLSConfig builds a TLS server config authenticated by
// the daemon's own identity keypair, requiring (but not verifying against
// a CA) a client certificate so internal/session can read back the
// caller's stable public key (§1, §6.1).
func selfSignedServerTLSConfig(id *identity.Identity) (*tls.Config, error) {
	priv := id.PrivateKey().ToECDSA()

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "punctured"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(10, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:         true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return nil, fmt.Errorf("self-sign server certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: priv}},
		ClientAuth:   tls.RequireAnyClientCert,
		MinVersion:   tls.VersionTLS13,
	}, nil
}
