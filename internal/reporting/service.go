package reporting

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-pharmacy-pos.git/internal/redisx"
	"github.com/ariefcatur/go-pharmacy-pos.git/internal/sales"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Service folds the sale.completed feed into daily revenue rollups in Redis.
// It only reads the event contract; the sales tables stay untouched.
type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleSaleCompleted is wired as the consumer handler.
func (s *Service) HandleSaleCompleted(ctx context.Context, m kafkago.Message) error {
	var env sales.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != sales.EventSaleCompleted {
		return nil // ignore
	}

	// dedup by event_id; redeliveries must not double-count revenue
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	exists, err := redisx.Exists(ctx, s.Redis, dkey)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	var p sales.SaleCompletedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return err
	}

	day := p.SoldAt.UTC().Format("2006-01-02")
	key := fmt.Sprintf(redisx.KeyDailyReport, day)

	// rollup + dedup marker in one round trip
	pipe := s.Redis.TxPipeline()
	pipe.HIncrBy(ctx, key, "revenue_cents", p.GrandTotalCents)
	pipe.HIncrBy(ctx, key, "tax_cents", p.TotalTaxCents)
	pipe.HIncrBy(ctx, key, "sales", 1)
	pipe.Expire(ctx, key, redisx.TTLDailyReport)
	pipe.Set(ctx, dkey, "1", redisx.TTLDedup)
	_, err = pipe.Exec(ctx)
	return err
}
