package config

// DaemonConfig is the full set of recognized configuration options of
// spec.md §6.5, loaded from a TOML file plus env-var overrides via
// cleanenv (same mechanism as the teacher's ApiConfig).
type DaemonConfig struct {
	DataDir     string `toml:"data_dir" env:"PUNCTURED_DATA_DIR" env-default:"./data"`
	NodeDataDir string `toml:"node_data_dir" env:"PUNCTURED_NODE_DATA_DIR" env-default:"./data/node"`

	BitcoinNetwork string `toml:"bitcoin_network" env:"PUNCTURED_BITCOIN_NETWORK" env-default:"regtest"`

	// ChainSource is mutually exclusive: exactly one of BitcoindRPCURL or
	// EsploraRPCURL is set. Neither is consumed by the daemon core
	// (§6.2's onchain/peer/channel operations are the node's concern);
	// startup only checks that exactly one is set, and neither is passed
	// to the node adapter.
	BitcoindRPCURL string `toml:"bitcoind_rpc_url" env:"PUNCTURED_BITCOIND_RPC_URL"`
	EsploraRPCURL  string `toml:"esplora_rpc_url" env:"PUNCTURED_ESPLORA_RPC_URL"`

	DaemonName string `toml:"daemon_name" env:"PUNCTURED_DAEMON_NAME" env-default:"punctured"`

	FeePPM            int64 `toml:"fee_ppm" env:"PUNCTURED_FEE_PPM" env-default:"5000"`
	BaseFeeMsat       int64 `toml:"base_fee_msat" env:"PUNCTURED_BASE_FEE_MSAT" env-default:"10000"`
	InvoiceExpirySecs int64 `toml:"invoice_expiry_secs" env:"PUNCTURED_INVOICE_EXPIRY_SECS" env-default:"3600"`

	ClientBind string `toml:"client_bind" env:"PUNCTURED_CLIENT_BIND" env-default:"0.0.0.0:9735"`
	LDKBind    string `toml:"ldk_bind" env:"PUNCTURED_LDK_BIND" env-default:"0.0.0.0:9736"`
	CLIBind    string `toml:"cli_bind" env:"PUNCTURED_CLI_BIND" env-default:"127.0.0.1:9737"`
	UIBind     string `toml:"ui_bind" env:"PUNCTURED_UI_BIND" env-default:"127.0.0.1:9738"`

	MinAmountSats         int64 `toml:"min_amount_sats" env:"PUNCTURED_MIN_AMOUNT_SATS" env-default:"1"`
	MaxAmountSats         int64 `toml:"max_amount_sats" env:"PUNCTURED_MAX_AMOUNT_SATS" env-default:"100000"`
	MaxPendingPerUser     int64 `toml:"max_pending_per_user" env:"PUNCTURED_MAX_PENDING_PER_USER" env-default:"10"`
	MaxConnectionsPerUser int64 `toml:"max_connections_per_user" env:"PUNCTURED_MAX_CONNECTIONS_PER_USER" env-default:"10"`

	LogLevel string `toml:"log_level" env:"PUNCTURED_LOG_LEVEL" env-default:"info"`

	// SecretPassphrase optionally encrypts the identity secret file at
	// rest (internal/identity); empty means store it plaintext.
	SecretPassphrase string `toml:"secret_passphrase" env:"PUNCTURED_SECRET_PASSPHRASE"`

	LND LNDConfigSection `toml:"lnd"`

	Redis RedisConfigSection `toml:"redis"`

	// LSPS1 liquidity-source flags are operator convenience, out of core
	// scope (§6.5): read and logged, never acted on by this daemon.
	LSPS1NodeID        string `toml:"lsp1_node_id" env:"PUNCTURED_LSP1_NODE_ID"`
	LSPS1SocketAddress string `toml:"lsp1_socket_address" env:"PUNCTURED_LSP1_SOCKET_ADDRESS"`
	LSPS1Token         string `toml:"lsp1_token" env:"PUNCTURED_LSP1_TOKEN"`
}

// LNDConfigSection mirrors internal/lnnode.LNDConfig's fields for
// copier.Copy plumbing in cmd/punctured.
type LNDConfigSection struct {
	GRPCHost              string `toml:"grpc_host" env:"PUNCTURED_LND_GRPC_HOST" env-default:"127.0.0.1"`
	GRPCPort              string `toml:"grpc_port" env:"PUNCTURED_LND_GRPC_PORT" env-default:"10009"`
	TLSCertPath           string `toml:"tls_cert_path" env:"PUNCTURED_LND_TLS_CERT_PATH"`
	MacaroonPath          string `toml:"macaroon_path" env:"PUNCTURED_LND_MACAROON_PATH"`
	PaymentTimeoutSeconds int    `toml:"payment_timeout_seconds" env:"PUNCTURED_LND_PAYMENT_TIMEOUT_SECONDS" env-default:"60"`
	MaxPaymentFeeSats     int64  `toml:"max_payment_fee_sats" env:"PUNCTURED_LND_MAX_PAYMENT_FEE_SATS" env-default:"1000"`
}

// RedisConfigSection mirrors pkg/cache.Config / go-redis dial options,
// shared between internal/eventbus's bus and the offer-reuse cache.
type RedisConfigSection struct {
	Host     string `toml:"host" env:"PUNCTURED_REDIS_HOST" env-default:"127.0.0.1"`
	Port     string `toml:"port" env:"PUNCTURED_REDIS_PORT" env-default:"6379"`
	Password string `toml:"password" env:"PUNCTURED_REDIS_PASSWORD"`
	DB       int    `toml:"db" env:"PUNCTURED_REDIS_DB" env-default:"0"`
}
