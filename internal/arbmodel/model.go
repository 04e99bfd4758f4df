// Package arbmodel holds the data model shared by every component:
// pools and tokens as discovery sees them, candidate opportunities, the
// concrete routes the router produces, MEV analysis, submissions,
// executions, and the workflow the coordinator tracks across all of it.
//
// Grounded on the teacher's internal/defi/models.go domain model, reshaped
// around the cyclic-route / exact-output semantics this system needs.
package arbmodel

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ChainID identifies an EVM-compatible chain by its canonical chain id.
type ChainID uint64

const (
	ChainEthereum ChainID = 1
	ChainBSC      ChainID = 56
	ChainPolygon  ChainID = 137
	ChainArbitrum ChainID = 42161
	ChainOptimism ChainID = 10
)

// DEX names the AMM protocol a Pool belongs to. A pool adapter is keyed by
// (chain, dex, protocol variant); DEX is the "dex" component of that key.
type DEX string

const (
	DEXUniswapV2   DEX = "uniswap_v2"
	DEXUniswapV3   DEX = "uniswap_v3"
	DEXSushiswap   DEX = "sushiswap"
	DEXPancakeswap DEX = "pancakeswap"
	DEXQuickswap   DEX = "quickswap"
	DEXCurve       DEX = "curve"
	DEXBalancer    DEX = "balancer"
)

// Token is unique by (chain, address). Decimals must be in [0,36].
type Token struct {
	Chain    ChainID
	Address  string
	Symbol   string
	Decimals uint8
}

// Key returns the (chain, address) identity used for Token equality and
// as a map key throughout discovery and routing.
func (t Token) Key() string {
	return tokenKey(t.Chain, t.Address)
}

func tokenKey(chain ChainID, address string) string {
	return strconv.FormatUint(uint64(chain), 10) + ":" + address
}

// PoolID identifies a Pool uniquely by (chain, dex, address).
type PoolID struct {
	Chain   ChainID
	Dex     DEX
	Address string
}

// Pool is an AMM liquidity pool snapshot as the core sees it: externally
// owned, cached by discovery, never mutated in place. Reserves must be
// non-negative; a snapshot is Stale once now-LastUpdated exceeds a
// configured staleness_ttl (checked by the caller via IsStale).
type Pool struct {
	ID          PoolID
	Token0      Token
	Token1      Token
	FeeBps      int
	Reserve0    decimal.Decimal
	Reserve1    decimal.Decimal
	SqrtPriceX96 decimal.Decimal // set instead of Reserve0/1 for concentrated-liquidity DEXes
	TVLUSD      decimal.Decimal
	LastUpdated time.Time
}

// IsStale reports whether the pool snapshot is older than ttl as of now.
func (p Pool) IsStale(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.LastUpdated) > ttl
}

// Valid reports whether the pool's reserves satisfy the non-negative
// invariant required of every snapshot discovery accepts.
func (p Pool) Valid() bool {
	if !p.SqrtPriceX96.IsZero() {
		return p.SqrtPriceX96.Sign() >= 0
	}
	return p.Reserve0.Sign() >= 0 && p.Reserve1.Sign() >= 0
}

// OpportunityKind is the sum-variant over the four candidate shapes
// discovery can emit.
type OpportunityKind string

const (
	KindTwoLeg               OpportunityKind = "2leg"
	KindTriangular           OpportunityKind = "triangular"
	KindFlashLoanTwoLeg      OpportunityKind = "flashloan-2leg"
	KindFlashLoanTriangular  OpportunityKind = "flashloan-triangular"
)

// PoolRef is a lightweight leg reference used by a candidate Opportunity
// before the router concretizes it into a Route leg.
type PoolRef struct {
	Pool     PoolID
	TokenIn  Token
	TokenOut Token
}

// Opportunity is a discovery candidate. token_path[0] must equal
// token_path[len-1] (cycle integrity); expires_at must strictly exceed
// detected_at. Fingerprint dedupes equivalent candidates within a window.
type Opportunity struct {
	ID                string
	Kind              OpportunityKind
	Chain             ChainID
	Legs              []PoolRef
	TokenPath         []Token
	AmountIn          decimal.Decimal
	ExpectedAmountOut decimal.Decimal
	ExpectedProfitUSD decimal.Decimal
	GasEstimate       uint64
	Confidence        float64 // [0,1]
	Risk               float64 // [0,1]
	DetectedAt        time.Time
	ExpiresAt         time.Time
	Fingerprint       string
}

// IsCycle reports the cycle-integrity invariant: the path starts and ends
// on the same token.
func (o Opportunity) IsCycle() bool {
	if len(o.TokenPath) < 2 {
		return false
	}
	first, last := o.TokenPath[0], o.TokenPath[len(o.TokenPath)-1]
	return first.Key() == last.Key()
}

// Expired reports whether the candidate has aged past its expiry as of now.
func (o Opportunity) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// RouteLeg is one concretized swap within a Route, with the exact-output
// slippage floor already applied.
type RouteLeg struct {
	Pool         PoolID
	TokenIn      Token
	TokenOut     Token
	AmountIn     decimal.Decimal
	ExpectedOut  decimal.Decimal
	MinAmountOut decimal.Decimal
	FeeBps       int
}

// Route is a concretized Opportunity: a priced, gas-estimated, slippage-
// bounded sequence of swaps ready to be handed to the MEV controller.
type Route struct {
	OpportunityID   string
	Legs            []RouteLeg
	PriceImpactBps  int
	SlippageBps     int
	MaxAmountIn     decimal.Decimal // set for exact-output plans
	Deadline        time.Time
	ExpectedProfitUSD decimal.Decimal
	GasEstimate     uint64
}

// Fingerprint identifies a Route by its opportunity id plus the ordered
// pool sequence, used by the executor for idempotent re-entry.
func (r Route) Fingerprint() string {
	s := r.OpportunityID
	for _, leg := range r.Legs {
		s += ":" + leg.Pool.Address
	}
	return s
}

// RejectReason names why a router plan could not produce a Route.
type RejectReason string

const (
	RejectInsufficientLiquidity RejectReason = "INSUFFICIENT_LIQUIDITY"
	RejectPriceImpactTooHigh    RejectReason = "PRICE_IMPACT_TOO_HIGH"
	RejectNoProfitableRoute     RejectReason = "NO_PROFITABLE_ROUTE"
)

// ThreatLevel is the MEV controller's overall assessment for a Route.
type ThreatLevel string

const (
	ThreatNone     ThreatLevel = "NONE"
	ThreatLow      ThreatLevel = "LOW"
	ThreatMedium   ThreatLevel = "MEDIUM"
	ThreatHigh     ThreatLevel = "HIGH"
	ThreatCritical ThreatLevel = "CRITICAL"
)

// ThreatType names one contributing MEV signal.
type ThreatType string

const (
	ThreatTypeSandwich            ThreatType = "sandwich"
	ThreatTypeFrontrun            ThreatType = "frontrun"
	ThreatTypeBackrun             ThreatType = "backrun"
	ThreatTypeOracleManipulation  ThreatType = "oracle_manipulation"
)

// Threat is one weighted signal contributing to a MEVAnalysis.
type Threat struct {
	Type        ThreatType
	Severity    float64
	EstLossUSD  decimal.Decimal
}

// ActionKind is the sum-variant over MEV protection actions.
type ActionKind string

const (
	ActionAdjustSlippage  ActionKind = "adjust_slippage"
	ActionUsePrivateMempool ActionKind = "use_private_mempool"
	ActionDelayExecution  ActionKind = "delay_execution"
	ActionCancelTx        ActionKind = "cancel_tx"
)

// Action is one recommended protection action; DeltaBps is meaningful
// only for AdjustSlippage, DelayBlocks only for DelayExecution.
type Action struct {
	Kind        ActionKind
	DeltaBps    int
	DelayBlocks uint64
}

// MEVAnalysis is the MEV controller's classification of a Route.
type MEVAnalysis struct {
	ThreatLevel        ThreatLevel
	Threats            []Threat
	RecommendedActions []Action
}

// SubmissionStrategy is the sum-variant over execution submission paths.
type SubmissionStrategy string

const (
	StrategyDirect        SubmissionStrategy = "direct"
	StrategyProtected     SubmissionStrategy = "protected"
	StrategyPrivateBundle SubmissionStrategy = "private_bundle"
	StrategyDelayed       SubmissionStrategy = "delayed"
)

// TxRequest is the unsigned transaction request a Submission carries.
type TxRequest struct {
	Chain    ChainID
	To       string
	Data     []byte
	Value    decimal.Decimal
	GasLimit uint64
	Nonce    uint64
}

// Submission describes how a Route's transaction(s) will reach the chain.
// Delayed requires TargetBlock > current block; PrivateBundle requires a
// BundleID issued by the relay before it is considered valid.
type Submission struct {
	Strategy    SubmissionStrategy
	TxRequest   TxRequest
	BundleID    string
	TargetBlock uint64
	GasPrice    decimal.Decimal
	GasLimit    uint64
}

// ExecutionStatus is the sum-variant state machine driven by the executor.
// Confirmed, Failed, Reverted, and TimedOut are terminal.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionSubmitted ExecutionStatus = "submitted"
	ExecutionConfirmed ExecutionStatus = "confirmed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionReverted  ExecutionStatus = "reverted"
	ExecutionTimedOut  ExecutionStatus = "timed_out"
)

// IsTerminal reports whether status is one of the four terminal states.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionConfirmed, ExecutionFailed, ExecutionReverted, ExecutionTimedOut:
		return true
	default:
		return false
	}
}

// Execution is the executor's record of one attempt to realize a Route,
// keyed by (workflow_id, route fingerprint) for idempotent re-entry.
type Execution struct {
	ID              string
	OpportunityID   string
	WorkflowID      string
	RouteFingerprint string
	Submission      Submission
	Status          ExecutionStatus
	TxHash          string
	BlockNumber     uint64
	GasUsed         uint64
	ActualProfitUSD decimal.Decimal
	Error           string
	ExecutedAt      time.Time
	ConfirmedAt     *time.Time
}

// AgentName names one of the four logical agents a Workflow tracks the
// status of as it moves through C2->C3->C4.
type AgentName string

const (
	AgentDetector AgentName = "detector"
	AgentRouter   AgentName = "router"
	AgentGuardian AgentName = "guardian"
	AgentExecutor AgentName = "executor"
)

// AgentState is the per-agent status a Workflow tracks.
type AgentState string

const (
	AgentIdle     AgentState = "idle"
	AgentStarting AgentState = "starting"
	AgentActive   AgentState = "active"
	AgentError    AgentState = "error"
	AgentStopped  AgentState = "stopped"
)

// WorkflowStatus is the sum-variant over the coordinator's workflow
// states. Transitions between statuses are not validated: the coordinator
// stores whatever status a caller sets.
type WorkflowStatus string

const (
	WorkflowStarting  WorkflowStatus = "starting"
	WorkflowActive    WorkflowStatus = "active"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowStopped   WorkflowStatus = "stopped"
	WorkflowError     WorkflowStatus = "error"
)

// WorkflowConfig is the caller-supplied configuration a Workflow carries
// across its lifetime: which chains/dexes to watch and the protection
// level to apply.
type WorkflowConfig struct {
	Chains          []ChainID
	Dexes           []DEX
	ProtectionLevel string
	MinProfitUSD    decimal.Decimal
}

// Workflow is the coordinator's record of one end-to-end arbitrage
// attempt lifecycle. LastUpdate must be monotonic; Phase/Progress give a
// caller-facing summary of where in C2->C3->C4 the workflow currently is.
type Workflow struct {
	ID           string
	Status       WorkflowStatus
	Config       WorkflowConfig
	AgentsStatus map[AgentName]AgentState
	Phase        string
	Progress     int
	StartedAt    time.Time
	LastUpdate   time.Time
	StoppedAt    *time.Time
	Summary      string
}
