package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/shopspring/decimal"
)

// amountBucketWidth buckets amount_in into coarse bands so that two
// candidates differing only by dust amounts collapse to the same
// fingerprint for dedup purposes.
var amountBucketWidth = decimal.NewFromInt(100)

// fingerprint computes H(kind, chain, sorted(legs), token_path, amount_in_bucket)
// per spec: a stable identity for deduplication and single-flight, invariant
// to leg ordering and small amount jitter.
func fingerprint(kind arbmodel.OpportunityKind, chain arbmodel.ChainID, legs []arbmodel.PoolRef, tokenPath []arbmodel.Token, amountIn decimal.Decimal) string {
	legKeys := make([]string, 0, len(legs))
	for _, leg := range legs {
		legKeys = append(legKeys, fmt.Sprintf("%s:%s", leg.Pool.Dex, leg.Pool.Address))
	}
	sort.Strings(legKeys)

	bucket := decimal.Zero
	if amountBucketWidth.Sign() > 0 {
		bucket = amountIn.Div(amountBucketWidth).Floor()
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|", kind, chain)
	for _, k := range legKeys {
		fmt.Fprintf(h, "%s,", k)
	}
	h.Write([]byte("|"))
	for _, tok := range tokenPath {
		fmt.Fprintf(h, "%d:%s,", tok.Chain, tok.Address)
	}
	fmt.Fprintf(h, "|%s", bucket.String())

	return hex.EncodeToString(h.Sum(nil))
}
