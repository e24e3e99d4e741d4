package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// ============================================================================
// 业务单号生成器
// ============================================================================
//
// 单号要求：
//   1. 全局唯一 —— 入库有唯一索引兜底，但生成端不应制造冲突
//   2. 趋势递增 —— 便于数据库索引
//   3. 不依赖时间戳+小范围随机数的弱随机拼接
//
// 使用 snowflake 完整 64 位 ID（毫秒时间戳+节点+序列号），
// 带业务前缀输出
// ============================================================================

// 业务单号前缀
const (
	PrefixRecharge     = "RC"  // 充值单
	PrefixWithdraw     = "WD"  // 提现单
	PrefixTransfer     = "TRF" // 转账单
	PrefixExchange     = "EXC" // 积分兑换单
	PrefixLedger       = "TXN" // 资金流水
	PrefixPointsLedger = "PTX" // 积分流水
)

// Generator 基于 snowflake 节点的单号生成器
type Generator struct {
	node *snowflake.Node
}

// New 创建生成器，nodeID 取值 0-1023，多实例部署时必须互不相同
func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("初始化 snowflake 节点失败: %w", err)
	}
	return &Generator{node: node}, nil
}

// Next 生成带前缀的业务单号，如 RC1795174248812253184
func (g *Generator) Next(prefix string) string {
	return prefix + g.node.Generate().String()
}
