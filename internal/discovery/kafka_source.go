package discovery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/pkg/kafka"
	segmentiokafka "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// poolUpdateMessage is the wire shape published on the pool-update topic.
// Chain/Dex/Address identify the pool; SqrtPriceX96 is left zero for
// reserve-based pools and Reserve0/1 are left zero for concentrated-
// liquidity pools.
type poolUpdateMessage struct {
	Chain        uint64 `json:"chain"`
	Dex          string `json:"dex"`
	Address      string `json:"address"`
	Token0       tokenMessage `json:"token0"`
	Token1       tokenMessage `json:"token1"`
	FeeBps       int    `json:"fee_bps"`
	Reserve0     string `json:"reserve0"`
	Reserve1     string `json:"reserve1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	TVLUSD       string `json:"tvl_usd"`
	UpdatedAtUnix int64 `json:"updated_at_unix"`
}

type tokenMessage struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// KafkaSource feeds pool-update events from a Kafka topic into a Detector.
type KafkaSource struct {
	consumer *kafka.Consumer
	detector *Detector
}

// NewKafkaSource wires a Kafka consumer to drive detector.OnPoolUpdate for
// every well-formed message; malformed messages are dropped by the
// consumer's handler contract (an error here never stalls the topic).
func NewKafkaSource(consumer *kafka.Consumer, detector *Detector) *KafkaSource {
	return &KafkaSource{consumer: consumer, detector: detector}
}

// Run blocks, feeding pool updates to the detector until ctx is canceled.
func (s *KafkaSource) Run(ctx context.Context) error {
	return s.consumer.Run(ctx, func(ctx context.Context, msg segmentiokafka.Message) error {
		var raw poolUpdateMessage
		if err := json.Unmarshal(msg.Value, &raw); err != nil {
			return err
		}
		s.detector.OnPoolUpdate(ctx, toPool(raw))
		return nil
	})
}

func toPool(raw poolUpdateMessage) arbmodel.Pool {
	parse := func(s string) decimal.Decimal {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	}

	return arbmodel.Pool{
		ID: arbmodel.PoolID{
			Chain:   arbmodel.ChainID(raw.Chain),
			Dex:     arbmodel.DEX(raw.Dex),
			Address: raw.Address,
		},
		Token0: arbmodel.Token{
			Chain: arbmodel.ChainID(raw.Chain), Address: raw.Token0.Address,
			Symbol: raw.Token0.Symbol, Decimals: raw.Token0.Decimals,
		},
		Token1: arbmodel.Token{
			Chain: arbmodel.ChainID(raw.Chain), Address: raw.Token1.Address,
			Symbol: raw.Token1.Symbol, Decimals: raw.Token1.Decimals,
		},
		FeeBps:       raw.FeeBps,
		Reserve0:     parse(raw.Reserve0),
		Reserve1:     parse(raw.Reserve1),
		SqrtPriceX96: parse(raw.SqrtPriceX96),
		TVLUSD:       parse(raw.TVLUSD),
		LastUpdated:  time.Unix(raw.UpdatedAtUnix, 0).UTC(),
	}
}
