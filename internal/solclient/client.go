package solclient

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
)

// Solana RPC client for on-chain bonding-curve verification.
//
// A launchpad curve account is a PDA of ["bonding-curve", mint] under the
// launchpad program. Reading it gives ground truth for curve progress and
// SOL raised — the feeds lag and occasionally lie, the chain does not.

// pumpFunProgramID is the mainnet launchpad program.
var pumpFunProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

// initialRealTokenReserves is the curve's token allocation at creation
// (793.1M tokens, 6 decimals). Progress is how much of it has been sold.
const initialRealTokenReserves = 793_100_000_000_000

const lamportsPerSol = 1_000_000_000

type Client struct {
	rpc *rpc.Client
	log zerolog.Logger
}

func New(endpoint string, log zerolog.Logger) *Client {
	return &Client{
		rpc: rpc.New(endpoint),
		log: log.With().Str("component", "solclient").Logger(),
	}
}

// CurveState is the decoded on-chain state of one bonding curve.
type CurveState struct {
	Mint        string
	ProgressPct float64
	SolRaised   float64
	Complete    bool
}

// bondingCurveAccount mirrors the on-chain account layout (borsh, after
// the 8-byte anchor discriminator).
type bondingCurveAccount struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

// curvePDA derives the bonding-curve account address for a mint.
func curvePDA(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("bonding-curve"), mint.Bytes()},
		pumpFunProgramID,
	)
	return addr, err
}

// FetchCurveStates reads and decodes the curve accounts for up to 100
// mints in one getMultipleAccounts call. Mints whose curve account is
// missing or undecodable are absent from the result.
func (c *Client) FetchCurveStates(ctx context.Context, mints []string) (map[string]CurveState, error) {
	if len(mints) == 0 {
		return map[string]CurveState{}, nil
	}
	if len(mints) > 100 {
		mints = mints[:100]
	}

	pdas := make([]solana.PublicKey, 0, len(mints))
	pdaMint := make([]string, 0, len(mints))
	for _, m := range mints {
		mintKey, err := solana.PublicKeyFromBase58(m)
		if err != nil {
			continue
		}
		pda, err := curvePDA(mintKey)
		if err != nil {
			continue
		}
		pdas = append(pdas, pda)
		pdaMint = append(pdaMint, m)
	}

	if len(pdas) == 0 {
		return map[string]CurveState{}, nil
	}

	out, err := c.rpc.GetMultipleAccountsWithOpts(ctx, pdas, &rpc.GetMultipleAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("getMultipleAccounts: %w", err)
	}

	states := make(map[string]CurveState, len(pdas))
	for i, acct := range out.Value {
		if acct == nil || len(acct.Data.GetBinary()) <= 8 {
			continue
		}
		state, err := decodeCurve(acct.Data.GetBinary())
		if err != nil {
			c.log.Debug().Err(err).Str("mint", pdaMint[i]).Msg("curve account decode failed")
			continue
		}
		state.Mint = pdaMint[i]
		states[pdaMint[i]] = state
	}
	return states, nil
}

// FetchCurveState reads one mint's curve.
func (c *Client) FetchCurveState(ctx context.Context, mint string) (CurveState, error) {
	states, err := c.FetchCurveStates(ctx, []string{mint})
	if err != nil {
		return CurveState{}, err
	}
	state, ok := states[mint]
	if !ok {
		return CurveState{}, fmt.Errorf("no curve account for mint %s", mint)
	}
	return state, nil
}

func decodeCurve(raw []byte) (CurveState, error) {
	var acct bondingCurveAccount
	dec := bin.NewBorshDecoder(raw[8:]) // skip anchor discriminator
	if err := dec.Decode(&acct); err != nil {
		return CurveState{}, err
	}

	sold := float64(initialRealTokenReserves - int64(acct.RealTokenReserves))
	progress := sold / initialRealTokenReserves * 100
	if progress < 0 {
		progress = 0
	}
	if progress > 100 || acct.Complete {
		progress = 100
	}

	return CurveState{
		ProgressPct: progress,
		SolRaised:   float64(acct.RealSolReserves) / lamportsPerSol,
		Complete:    acct.Complete,
	}, nil
}

// Health pings the RPC node.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.rpc.GetHealth(ctx)
	return err
}
