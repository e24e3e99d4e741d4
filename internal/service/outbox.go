package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mallwallet/internal/model"
	"mallwallet/internal/store"
)

// emitEventTx 事务内写入结算事件，与资金变动同事务提交，
// 由发件箱任务转投 Kafka（至少一次投递）。key 用业务单号做分区键
func emitEventTx(ctx context.Context, tx store.Store, clock Clock, topic, event, key string, data map[string]interface{}) error {
	data["event"] = event
	data["occurred_at"] = clock.Now().Format(time.RFC3339)
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化结算事件失败: %w", err)
	}
	return tx.CreateOutboxMessage(ctx, &model.OutboxMessage{
		MessageKey: key,
		Topic:      topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}
