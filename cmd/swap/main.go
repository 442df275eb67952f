package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"
	"stableswap/pkg/config"
	"stableswap/pkg/pool/stableswap"
	"stableswap/pkg/protocol"
	"stableswap/pkg/sol"
	"stableswap/pkg/subscription"
)

type PoolResponse struct {
	Pool           string `json:"pool"`
	Program        string `json:"program"`
	Authority      string `json:"authority"`
	Nonce          uint8  `json:"nonce"`
	MintA          string `json:"mintA"`
	MintB          string `json:"mintB"`
	PoolTokenMint  string `json:"poolTokenMint"`
	TokenAccountA  string `json:"tokenAccountA"`
	TokenAccountB  string `json:"tokenAccountB"`
	AmpFactor      uint64 `json:"ampFactor"`
	FeeNumerator   uint64 `json:"feeNumerator"`
	FeeDenominator uint64 `json:"feeDenominator"`
	ReserveA       string `json:"reserveA,omitempty"`
	ReserveB       string `json:"reserveB,omitempty"`
}

type TxResponse struct {
	Operation string `json:"operation"`
	Signature string `json:"signature"`
}

type DryRunResponse struct {
	Operation string   `json:"operation"`
	Payload   string   `json:"payloadBase58"`
	Accounts  []string `json:"accounts"`
}

var (
	rpcEndpoint = flag.String("rpc", "", "Solana RPC endpoint (reads RPC_ENDPOINTS from .env if not specified)")
	wsEndpoint  = flag.String("ws", "", "Pubsub websocket endpoint for push confirmation (optional)")
	jitoRpc     = flag.String("jito", "", "Jito block-engine endpoint (optional)")
	keypairPath = flag.String("keypair", "", "Fee payer keypair file (reads KEYPAIR_PATH from .env if not specified)")
	poolAddr    = flag.String("pool", "", "Pool account address (required except for create)")
	poolKeypair = flag.String("pool-keypair", "", "Keypair file for the new pool account (create; generated if omitted)")
	programAddr = flag.String("program", stableswap.STABLE_SWAP_PROGRAM_ID, "StableSwap program id")
	op          = flag.String("op", "load", "Operation: load | create | swap | deposit | withdraw")
	source      = flag.String("source", "", "User source token account (swap) / pool token account (withdraw)")
	destination = flag.String("dest", "", "User destination token account (swap) / pool token destination (create, deposit)")
	accountA    = flag.String("account-a", "", "Asset A token account (create: pool reserve; deposit, withdraw: user account)")
	accountB    = flag.String("account-b", "", "Asset B token account (create: pool reserve; deposit, withdraw: user account)")
	mintA       = flag.String("mint-a", "", "Mint of asset A (create)")
	mintB       = flag.String("mint-b", "", "Mint of asset B (create)")
	poolMint    = flag.String("pool-mint", "", "Pool token mint (create)")
	ampFactor   = flag.String("amp", "100", "Amplification factor (create)")
	feeNum      = flag.String("fee-num", "0", "Trade fee numerator (create)")
	feeDen      = flag.String("fee-den", "10000", "Trade fee denominator (create)")
	aToB        = flag.Bool("a-to-b", true, "Swap direction: true trades asset A for asset B")
	amount      = flag.String("amount", "0", "Primary amount in smallest units")
	amountB     = flag.String("amount-b", "0", "Second amount (deposit: token B)")
	minOut      = flag.String("min-out", "0", "Minimum acceptable output in smallest units")
	minOutB     = flag.String("min-out-b", "0", "Second minimum (withdraw: token B)")
	rateLimit   = flag.Int("ratelimit", 20, "RPC requests per second")
	dryRun      = flag.Bool("dry-run", false, "Build the instruction and print it without submitting")
	timeout     = flag.Duration("timeout", 90*time.Second, "Overall operation cutoff")
)

func main() {
	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env file: %v\n", err)
	}
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	endpoint := *rpcEndpoint
	if endpoint == "" {
		if endpoints := config.GetRPCEndpoints(); len(endpoints) > 0 {
			endpoint = endpoints[0]
		}
	}
	if endpoint == "" {
		fmt.Fprintln(os.Stderr, "Error: -rpc is required")
		flag.PrintDefaults()
		os.Exit(1)
	}

	jito := *jitoRpc
	if jito == "" {
		jito = config.GetJitoEndpoint()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	solClient, err := sol.NewClient(ctx, endpoint, jito, *rateLimit)
	if err != nil {
		fatal("failed to create client: %v", err)
	}
	program := mustKey("program", *programAddr)

	if *op == "create" {
		runCreate(ctx, solClient, program, logger)
		return
	}

	pool := mustKey("pool", *poolAddr)

	// Only the signing operations need a fee payer.
	var payer solana.PrivateKey
	signs := *op != "load" && !*dryRun
	if signs {
		payer = loadPayer()
	}

	client, err := protocol.LoadStableSwap(ctx, solClient, pool, program, payer)
	if err != nil {
		fatal("load failed: %v", err)
	}
	client.WithLogger(logger)

	if ws := pickWS(); ws != "" && signs {
		wsClient, err := subscription.NewWebSocketClient(ctx, ws)
		if err != nil {
			logger.Warn("websocket unavailable, falling back to polling", zap.Error(err))
		} else {
			defer wsClient.Close()
			client.WithConfirmationWaiter(subscription.NewSignatureWaiter(wsClient))
		}
	}

	switch *op {
	case "load":
		runLoad(ctx, client)
	case "swap":
		runSwap(ctx, client)
	case "deposit":
		runDeposit(ctx, client)
	case "withdraw":
		runWithdraw(ctx, client)
	default:
		fatal("unknown operation %q", *op)
	}
}

func runCreate(ctx context.Context, transport sol.Transport, program solana.PublicKey, logger *zap.Logger) {
	payer := loadPayer()
	poolAccount := loadPoolKeypair()

	params := protocol.CreateParams{
		PoolAccount:                 poolAccount,
		TokenAccountA:               mustKey("account-a", *accountA),
		TokenAccountB:               mustKey("account-b", *accountB),
		PoolTokenMint:               mustKey("pool-mint", *poolMint),
		MintA:                       mustKey("mint-a", *mintA),
		MintB:                       mustKey("mint-b", *mintB),
		DestinationPoolTokenAccount: mustKey("dest", *destination),
		ProgramID:                   program,
		TokenProgramID:              stableswap.TokenProgramID,
		AmpFactor:                   mustAmount("amp", *ampFactor),
		FeeNumerator:                mustAmount("fee-num", *feeNum),
		FeeDenominator:              mustAmount("fee-den", *feeDen),
	}

	logger.Info("creating pool", zap.String("pool", poolAccount.PublicKey().String()))
	client, err := protocol.CreateStableSwap(ctx, transport, payer, params)
	if err != nil {
		fatal("create failed: %v", err)
	}
	printJSON(poolResponse(client))
}

func runLoad(ctx context.Context, client *protocol.StableSwap) {
	resp := poolResponse(client)
	if reserveA, reserveB, err := client.Reserves(ctx); err == nil {
		resp.ReserveA = reserveA.String()
		resp.ReserveB = reserveB.String()
	}
	printJSON(resp)
}

func poolResponse(client *protocol.StableSwap) PoolResponse {
	return PoolResponse{
		Pool:           client.Pool.GetID(),
		Program:        client.Pool.ProgramId.String(),
		Authority:      client.Pool.Authority.String(),
		Nonce:          client.Pool.Nonce,
		MintA:          client.Pool.MintA.String(),
		MintB:          client.Pool.MintB.String(),
		PoolTokenMint:  client.Pool.PoolTokenMint.String(),
		TokenAccountA:  client.Pool.TokenAccountA.String(),
		TokenAccountB:  client.Pool.TokenAccountB.String(),
		AmpFactor:      client.Pool.AmpFactor,
		FeeNumerator:   client.Pool.FeeNumerator,
		FeeDenominator: client.Pool.FeeDenominator,
	}
}

func runSwap(ctx context.Context, client *protocol.StableSwap) {
	userSource := mustKey("source", *source)
	userDestination := mustKey("dest", *destination)

	poolSource := client.Pool.TokenAccountA
	poolDestination := client.Pool.TokenAccountB
	if !*aToB {
		poolSource, poolDestination = poolDestination, poolSource
	}

	if *dryRun {
		inst, err := stableswap.NewSwapInstruction(
			client.Pool.ProgramId, client.Pool.PoolId, client.Pool.Authority,
			userSource, poolSource, poolDestination, userDestination,
			client.Pool.TokenProgramID,
			mustAmount("amount", *amount), mustAmount("min-out", *minOut),
		)
		if err != nil {
			fatal("swap build failed: %v", err)
		}
		printDryRun("swap", inst)
		return
	}

	sig, err := client.Swap(ctx, userSource, poolSource, poolDestination, userDestination,
		mustAmount("amount", *amount), mustAmount("min-out", *minOut))
	if err != nil {
		fatal("swap failed: %v", err)
	}
	printJSON(TxResponse{Operation: "swap", Signature: sig.String()})
}

func runDeposit(ctx context.Context, client *protocol.StableSwap) {
	sig, err := client.Deposit(ctx,
		mustKey("account-a", *accountA),
		mustKey("account-b", *accountB),
		mustKey("dest", *destination),
		mustAmount("amount", *amount),
		mustAmount("amount-b", *amountB),
		mustAmount("min-out", *minOut),
	)
	if err != nil {
		fatal("deposit failed: %v", err)
	}
	printJSON(TxResponse{Operation: "deposit", Signature: sig.String()})
}

func runWithdraw(ctx context.Context, client *protocol.StableSwap) {
	sig, err := client.Withdraw(ctx,
		mustKey("source", *source),
		mustKey("account-a", *accountA),
		mustKey("account-b", *accountB),
		mustAmount("amount", *amount),
		mustAmount("min-out", *minOut),
		mustAmount("min-out-b", *minOutB),
	)
	if err != nil {
		fatal("withdraw failed: %v", err)
	}
	printJSON(TxResponse{Operation: "withdraw", Signature: sig.String()})
}

func printDryRun(operation string, inst solana.Instruction) {
	data, err := inst.Data()
	if err != nil {
		fatal("encode failed: %v", err)
	}
	accounts := make([]string, 0, len(inst.Accounts()))
	for _, meta := range inst.Accounts() {
		accounts = append(accounts, meta.PublicKey.String())
	}
	printJSON(DryRunResponse{
		Operation: operation,
		Payload:   base58.Encode(data),
		Accounts:  accounts,
	})
}

func loadPayer() solana.PrivateKey {
	path := *keypairPath
	if path == "" {
		path = config.GetKeypairPath()
	}
	if path == "" {
		fatal("a fee payer keypair is required (-keypair or KEYPAIR_PATH)")
	}
	payer, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		fatal("failed to load keypair %s: %v", path, err)
	}
	return payer
}

func loadPoolKeypair() solana.PrivateKey {
	if *poolKeypair == "" {
		return solana.NewWallet().PrivateKey
	}
	kp, err := solana.PrivateKeyFromSolanaKeygenFile(*poolKeypair)
	if err != nil {
		fatal("failed to load pool keypair %s: %v", *poolKeypair, err)
	}
	return kp
}

func pickWS() string {
	if *wsEndpoint != "" {
		return *wsEndpoint
	}
	return config.GetWSEndpoint()
}

func mustKey(name, value string) solana.PublicKey {
	if value == "" {
		fatal("-%s is required for -op %s", name, *op)
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		fatal("invalid %s address: %v", name, err)
	}
	return key
}

func mustAmount(name, value string) math.Int {
	v, ok := math.NewIntFromString(value)
	if !ok {
		fatal("invalid -%s: %q is not an integer", name, value)
	}
	return v
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("failed to marshal output: %v", err)
	}
	fmt.Println(string(out))
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
