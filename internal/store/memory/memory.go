// Package memory 提供 store.Store 的进程内实现，供单元测试使用：
// 事务在状态副本上执行，回调成功才整体提交，失败全部丢弃，
// 与 MySQL 实现的回滚语义一致。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mallwallet/internal/model"
	"mallwallet/internal/store"
)

type state struct {
	wallets      map[int64]model.WalletAccount
	ledger       []model.LedgerEntry
	pointsAccts  map[int64]model.PointsAccount
	pointsLedger []model.PointsLedgerEntry
	recharges    map[string]model.RechargeOrder
	withdraws    map[string]model.WithdrawOrder
	goods        map[int64]model.PointsGoods
	exchanges    map[string]model.PointsExchangeRecord
	outbox       []model.OutboxMessage
	nextID       int64
}

func newState() *state {
	return &state{
		wallets:     map[int64]model.WalletAccount{},
		pointsAccts: map[int64]model.PointsAccount{},
		recharges:   map[string]model.RechargeOrder{},
		withdraws:   map[string]model.WithdrawOrder{},
		goods:       map[int64]model.PointsGoods{},
		exchanges:   map[string]model.PointsExchangeRecord{},
		nextID:      1,
	}
}

func (s *state) clone() *state {
	c := &state{
		wallets:      make(map[int64]model.WalletAccount, len(s.wallets)),
		ledger:       append([]model.LedgerEntry(nil), s.ledger...),
		pointsAccts:  make(map[int64]model.PointsAccount, len(s.pointsAccts)),
		pointsLedger: append([]model.PointsLedgerEntry(nil), s.pointsLedger...),
		recharges:    make(map[string]model.RechargeOrder, len(s.recharges)),
		withdraws:    make(map[string]model.WithdrawOrder, len(s.withdraws)),
		goods:        make(map[int64]model.PointsGoods, len(s.goods)),
		exchanges:    make(map[string]model.PointsExchangeRecord, len(s.exchanges)),
		outbox:       append([]model.OutboxMessage(nil), s.outbox...),
		nextID:       s.nextID,
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.pointsAccts {
		c.pointsAccts[k] = v
	}
	for k, v := range s.recharges {
		c.recharges[k] = v
	}
	for k, v := range s.withdraws {
		c.withdraws[k] = v
	}
	for k, v := range s.goods {
		c.goods[k] = v
	}
	for k, v := range s.exchanges {
		c.exchanges[k] = v
	}
	return c
}

func (s *state) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// Memory 内存存储。Now 可替换为固定时钟以获得确定性时间戳
type Memory struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
	Now  func() time.Time
}

var _ store.Store = (*Memory)(nil)

func New() *Memory {
	return &Memory{mu: &sync.Mutex{}, st: newState(), Now: time.Now}
}

// begin 非事务调用时持根锁；事务内调用已在根锁之下
func (m *Memory) begin() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	if m.inTx {
		// 嵌套事务并入当前事务
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.st.clone()
	tx := &Memory{mu: m.mu, st: work, inTx: true, Now: m.Now}
	if err := fn(tx); err != nil {
		return err
	}
	m.st = work
	return nil
}

// PutPointsGoods 测试预置积分商品（目录写入归商品侧，不在 Store 接口内）
func (m *Memory) PutPointsGoods(g model.PointsGoods) {
	defer m.begin()()
	if g.ID == 0 {
		g.ID = m.st.id()
	}
	m.st.goods[g.ID] = g
}

// ---- 钱包账户 ----

func (m *Memory) GetWalletAccount(ctx context.Context, ownerID int64) (*model.WalletAccount, error) {
	defer m.begin()()
	acct, ok := m.st.wallets[ownerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &acct, nil
}

func (m *Memory) GetWalletAccountForUpdate(ctx context.Context, ownerID int64) (*model.WalletAccount, error) {
	return m.GetWalletAccount(ctx, ownerID)
}

func (m *Memory) CreateWalletAccountIfAbsent(ctx context.Context, acct *model.WalletAccount) error {
	defer m.begin()()
	if _, ok := m.st.wallets[acct.OwnerID]; ok {
		return nil
	}
	acct.ID = m.st.id()
	acct.CreatedAt = m.Now()
	m.st.wallets[acct.OwnerID] = *acct
	return nil
}

func (m *Memory) UpdateWalletAccount(ctx context.Context, acct *model.WalletAccount) error {
	defer m.begin()()
	cur, ok := m.st.wallets[acct.OwnerID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != acct.Version {
		return store.ErrVersionConflict
	}
	acct.Version++
	acct.UpdatedAt = m.Now()
	m.st.wallets[acct.OwnerID] = *acct
	return nil
}

// ---- 资金流水 ----

func (m *Memory) AppendLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	defer m.begin()()
	for _, e := range m.st.ledger {
		if e.EntryNo == entry.EntryNo {
			return store.ErrDuplicate
		}
	}
	entry.ID = m.st.id()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.Now()
	}
	m.st.ledger = append(m.st.ledger, *entry)
	return nil
}

func (m *Memory) QueryLedger(ctx context.Context, q store.LedgerQuery) ([]*model.LedgerEntry, int64, error) {
	defer m.begin()()
	var hits []model.LedgerEntry
	for _, e := range m.st.ledger {
		if e.OwnerID != q.OwnerID {
			continue
		}
		if q.Kind != "" && e.Kind != q.Kind {
			continue
		}
		if q.Direction != "" && e.Direction != q.Direction {
			continue
		}
		if q.BizType != "" && e.BizType != q.BizType {
			continue
		}
		if q.Begin != nil && e.CreatedAt.Before(*q.Begin) {
			continue
		}
		if q.End != nil && !e.CreatedAt.Before(*q.End) {
			continue
		}
		hits = append(hits, e)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].ID > hits[j].ID })
	total := int64(len(hits))
	hits = page(hits, q.Offset, q.Limit)
	out := make([]*model.LedgerEntry, len(hits))
	for i := range hits {
		e := hits[i]
		out[i] = &e
	}
	return out, total, nil
}

func page[T any](in []T, offset, limit int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

// ---- 充值单 ----

func (m *Memory) CreateRechargeOrder(ctx context.Context, order *model.RechargeOrder) error {
	defer m.begin()()
	if _, ok := m.st.recharges[order.OrderNo]; ok {
		return store.ErrDuplicate
	}
	order.ID = m.st.id()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = m.Now()
	}
	m.st.recharges[order.OrderNo] = *order
	return nil
}

func (m *Memory) GetRechargeOrder(ctx context.Context, orderNo string) (*model.RechargeOrder, error) {
	defer m.begin()()
	order, ok := m.st.recharges[orderNo]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &order, nil
}

func (m *Memory) GetRechargeOrderForUpdate(ctx context.Context, orderNo string) (*model.RechargeOrder, error) {
	return m.GetRechargeOrder(ctx, orderNo)
}

func (m *Memory) UpdateRechargeOrder(ctx context.Context, order *model.RechargeOrder) error {
	defer m.begin()()
	if _, ok := m.st.recharges[order.OrderNo]; !ok {
		return store.ErrNotFound
	}
	order.UpdatedAt = m.Now()
	m.st.recharges[order.OrderNo] = *order
	return nil
}

func (m *Memory) ListRechargeOrders(ctx context.Context, q store.OrderQuery) ([]*model.RechargeOrder, int64, error) {
	defer m.begin()()
	var hits []model.RechargeOrder
	for _, o := range m.st.recharges {
		if o.OwnerID != q.OwnerID {
			continue
		}
		if q.Status != "" && o.PayStatus != q.Status {
			continue
		}
		if q.Begin != nil && o.CreatedAt.Before(*q.Begin) {
			continue
		}
		if q.End != nil && !o.CreatedAt.Before(*q.End) {
			continue
		}
		hits = append(hits, o)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].ID > hits[j].ID })
	total := int64(len(hits))
	hits = page(hits, q.Offset, q.Limit)
	out := make([]*model.RechargeOrder, len(hits))
	for i := range hits {
		o := hits[i]
		out[i] = &o
	}
	return out, total, nil
}

func (m *Memory) ListExpiredRechargeOrders(ctx context.Context, before time.Time, limit int) ([]*model.RechargeOrder, error) {
	defer m.begin()()
	var out []*model.RechargeOrder
	for _, o := range m.st.recharges {
		if o.PayStatus == model.RechargeStatusPending && o.ExpiredAt.Before(before) {
			hit := o
			out = append(out, &hit)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// ---- 提现单 ----

func (m *Memory) CreateWithdrawOrder(ctx context.Context, order *model.WithdrawOrder) error {
	defer m.begin()()
	if _, ok := m.st.withdraws[order.WithdrawNo]; ok {
		return store.ErrDuplicate
	}
	order.ID = m.st.id()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = m.Now()
	}
	m.st.withdraws[order.WithdrawNo] = *order
	return nil
}

func (m *Memory) GetWithdrawOrder(ctx context.Context, withdrawNo string) (*model.WithdrawOrder, error) {
	defer m.begin()()
	order, ok := m.st.withdraws[withdrawNo]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &order, nil
}

func (m *Memory) GetWithdrawOrderForUpdate(ctx context.Context, withdrawNo string) (*model.WithdrawOrder, error) {
	return m.GetWithdrawOrder(ctx, withdrawNo)
}

func (m *Memory) UpdateWithdrawOrder(ctx context.Context, order *model.WithdrawOrder) error {
	defer m.begin()()
	if _, ok := m.st.withdraws[order.WithdrawNo]; !ok {
		return store.ErrNotFound
	}
	order.UpdatedAt = m.Now()
	m.st.withdraws[order.WithdrawNo] = *order
	return nil
}

func (m *Memory) ListWithdrawOrders(ctx context.Context, q store.OrderQuery) ([]*model.WithdrawOrder, int64, error) {
	defer m.begin()()
	var hits []model.WithdrawOrder
	for _, o := range m.st.withdraws {
		if o.OwnerID != q.OwnerID {
			continue
		}
		if q.Status != "" && o.AuditStatus != q.Status {
			continue
		}
		if q.Begin != nil && o.CreatedAt.Before(*q.Begin) {
			continue
		}
		if q.End != nil && !o.CreatedAt.Before(*q.End) {
			continue
		}
		hits = append(hits, o)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].ID > hits[j].ID })
	total := int64(len(hits))
	hits = page(hits, q.Offset, q.Limit)
	out := make([]*model.WithdrawOrder, len(hits))
	for i := range hits {
		o := hits[i]
		out[i] = &o
	}
	return out, total, nil
}

func (m *Memory) GetWithdrawStatsSince(ctx context.Context, ownerID int64, since time.Time) (*store.WithdrawStats, error) {
	defer m.begin()()
	stats := &store.WithdrawStats{}
	for _, o := range m.st.withdraws {
		if o.OwnerID != ownerID || o.CreatedAt.Before(since) {
			continue
		}
		if o.AuditStatus == model.WithdrawAuditRejected || o.AuditStatus == model.WithdrawAuditCancelled {
			continue
		}
		stats.Count++
		stats.Amount += o.Amount
	}
	return stats, nil
}

// ---- 积分 ----

func (m *Memory) GetPointsAccount(ctx context.Context, ownerID int64) (*model.PointsAccount, error) {
	defer m.begin()()
	acct, ok := m.st.pointsAccts[ownerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &acct, nil
}

func (m *Memory) GetPointsAccountForUpdate(ctx context.Context, ownerID int64) (*model.PointsAccount, error) {
	return m.GetPointsAccount(ctx, ownerID)
}

func (m *Memory) CreatePointsAccountIfAbsent(ctx context.Context, acct *model.PointsAccount) error {
	defer m.begin()()
	if _, ok := m.st.pointsAccts[acct.OwnerID]; ok {
		return nil
	}
	acct.ID = m.st.id()
	acct.CreatedAt = m.Now()
	m.st.pointsAccts[acct.OwnerID] = *acct
	return nil
}

func (m *Memory) UpdatePointsAccount(ctx context.Context, acct *model.PointsAccount) error {
	defer m.begin()()
	cur, ok := m.st.pointsAccts[acct.OwnerID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != acct.Version {
		return store.ErrVersionConflict
	}
	acct.Version++
	acct.UpdatedAt = m.Now()
	m.st.pointsAccts[acct.OwnerID] = *acct
	return nil
}

func (m *Memory) AppendPointsLedgerEntry(ctx context.Context, entry *model.PointsLedgerEntry) error {
	defer m.begin()()
	for _, e := range m.st.pointsLedger {
		if e.EntryNo == entry.EntryNo {
			return store.ErrDuplicate
		}
	}
	entry.ID = m.st.id()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.Now()
	}
	m.st.pointsLedger = append(m.st.pointsLedger, *entry)
	return nil
}

func (m *Memory) QueryPointsLedger(ctx context.Context, q store.PointsLedgerQuery) ([]*model.PointsLedgerEntry, int64, error) {
	defer m.begin()()
	var hits []model.PointsLedgerEntry
	for _, e := range m.st.pointsLedger {
		if e.OwnerID != q.OwnerID {
			continue
		}
		if q.Kind != "" && e.Kind != q.Kind {
			continue
		}
		if q.Direction != "" && e.Direction != q.Direction {
			continue
		}
		if q.Begin != nil && e.CreatedAt.Before(*q.Begin) {
			continue
		}
		if q.End != nil && !e.CreatedAt.Before(*q.End) {
			continue
		}
		hits = append(hits, e)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].ID > hits[j].ID })
	total := int64(len(hits))
	hits = page(hits, q.Offset, q.Limit)
	out := make([]*model.PointsLedgerEntry, len(hits))
	for i := range hits {
		e := hits[i]
		out[i] = &e
	}
	return out, total, nil
}

func (m *Memory) GetPointsGoods(ctx context.Context, goodsID int64) (*model.PointsGoods, error) {
	defer m.begin()()
	goods, ok := m.st.goods[goodsID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &goods, nil
}

func (m *Memory) GetPointsGoodsForUpdate(ctx context.Context, goodsID int64) (*model.PointsGoods, error) {
	return m.GetPointsGoods(ctx, goodsID)
}

func (m *Memory) UpdatePointsGoods(ctx context.Context, goods *model.PointsGoods) error {
	defer m.begin()()
	if _, ok := m.st.goods[goods.ID]; !ok {
		return store.ErrNotFound
	}
	goods.UpdatedAt = m.Now()
	m.st.goods[goods.ID] = *goods
	return nil
}

func (m *Memory) CreateExchangeRecord(ctx context.Context, rec *model.PointsExchangeRecord) error {
	defer m.begin()()
	if _, ok := m.st.exchanges[rec.ExchangeNo]; ok {
		return store.ErrDuplicate
	}
	rec.ID = m.st.id()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.Now()
	}
	m.st.exchanges[rec.ExchangeNo] = *rec
	return nil
}

func (m *Memory) GetExchangeRecord(ctx context.Context, exchangeNo string) (*model.PointsExchangeRecord, error) {
	defer m.begin()()
	rec, ok := m.st.exchanges[exchangeNo]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) GetExchangeRecordForUpdate(ctx context.Context, exchangeNo string) (*model.PointsExchangeRecord, error) {
	return m.GetExchangeRecord(ctx, exchangeNo)
}

func (m *Memory) UpdateExchangeRecord(ctx context.Context, rec *model.PointsExchangeRecord) error {
	defer m.begin()()
	if _, ok := m.st.exchanges[rec.ExchangeNo]; !ok {
		return store.ErrNotFound
	}
	rec.UpdatedAt = m.Now()
	m.st.exchanges[rec.ExchangeNo] = *rec
	return nil
}

func (m *Memory) ListExchangeRecords(ctx context.Context, q store.OrderQuery) ([]*model.PointsExchangeRecord, int64, error) {
	defer m.begin()()
	var hits []model.PointsExchangeRecord
	for _, r := range m.st.exchanges {
		if r.OwnerID != q.OwnerID {
			continue
		}
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		if q.Begin != nil && r.CreatedAt.Before(*q.Begin) {
			continue
		}
		if q.End != nil && !r.CreatedAt.Before(*q.End) {
			continue
		}
		hits = append(hits, r)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].ID > hits[j].ID })
	total := int64(len(hits))
	hits = page(hits, q.Offset, q.Limit)
	out := make([]*model.PointsExchangeRecord, len(hits))
	for i := range hits {
		r := hits[i]
		out[i] = &r
	}
	return out, total, nil
}

func (m *Memory) CountOwnerExchanges(ctx context.Context, ownerID, goodsID int64) (int64, error) {
	defer m.begin()()
	var count int64
	for _, r := range m.st.exchanges {
		if r.OwnerID == ownerID && r.GoodsID == goodsID && r.Status != model.ExchangeCancelled {
			count++
		}
	}
	return count, nil
}

// ---- 发件箱 ----

func (m *Memory) CreateOutboxMessage(ctx context.Context, msg *model.OutboxMessage) error {
	defer m.begin()()
	msg.ID = m.st.id()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.Now()
	}
	m.st.outbox = append(m.st.outbox, *msg)
	return nil
}

func (m *Memory) GetPendingOutboxMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	defer m.begin()()
	var out []*model.OutboxMessage
	for i := range m.st.outbox {
		if m.st.outbox[i].Status != model.OutboxStatusPending {
			continue
		}
		hit := m.st.outbox[i]
		out = append(out, &hit)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) UpdateOutboxStatus(ctx context.Context, id int64, status string) error {
	defer m.begin()()
	for i := range m.st.outbox {
		if m.st.outbox[i].ID == id {
			m.st.outbox[i].Status = status
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *Memory) IncrOutboxRetry(ctx context.Context, id int64) error {
	defer m.begin()()
	for i := range m.st.outbox {
		if m.st.outbox[i].ID == id {
			m.st.outbox[i].RetryCount++
			return nil
		}
	}
	return store.ErrNotFound
}
