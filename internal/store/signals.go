package store

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock-signal-sentry/pkg/types"
)

// SignalFilter 信号查询条件，零值字段不过滤
type SignalFilter struct {
	Market   string
	From     time.Time
	To       time.Time
	Name     string
	Signal   string
	Action   string
	MinScore int
	Limit    int
}

// ReplaceForDates 先删后插地替换指定日期的信号，整体在一个事务内，
// 保证每个 (股票, 交易日) 至多一条信号，重算幂等
func (m *Manager) ReplaceForDates(market string, dates []time.Time, signals []*types.Signal) error {
	if len(dates) == 0 {
		return nil
	}

	normalized := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		normalized = append(normalized, normalizeDate(d))
	}

	return m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("market = ? AND date IN ?", market, normalized).
			Delete(&SignalRecord{}).Error; err != nil {
			return fmt.Errorf("清理旧信号失败: %v", err)
		}

		if len(signals) == 0 {
			return nil
		}

		records := make([]SignalRecord, 0, len(signals))
		for _, s := range signals {
			records = append(records, signalToRecord(s))
		}

		if err := tx.CreateInBatches(records, 100).Error; err != nil {
			return fmt.Errorf("写入新信号失败: %v", err)
		}
		return nil
	})
}

// QuerySignals 只读查询，按日期倒序，供看板与API使用
func (m *Manager) QuerySignals(f SignalFilter) ([]*types.Signal, error) {
	query := m.db.Model(&SignalRecord{})

	if f.Market != "" {
		query = query.Where("market = ?", f.Market)
	}
	if !f.From.IsZero() {
		query = query.Where("date >= ?", normalizeDate(f.From))
	}
	if !f.To.IsZero() {
		query = query.Where("date <= ?", normalizeDate(f.To))
	}
	if f.Name != "" {
		query = query.Where("name = ?", f.Name)
	}
	if f.Signal != "" {
		query = query.Where("signal = ?", f.Signal)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.MinScore > 0 {
		query = query.Where("confidence_score >= ?", f.MinScore)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var records []SignalRecord
	if err := query.Order("date DESC, confidence_score DESC").Find(&records).Error; err != nil {
		return nil, err
	}

	signals := make([]*types.Signal, 0, len(records))
	for i := range records {
		signals = append(signals, recordToSignal(&records[i]))
	}
	return signals, nil
}

// CountSignalsForDate 统计某交易日信号条数
func (m *Manager) CountSignalsForDate(market string, date time.Time) (int64, error) {
	var count int64
	err := m.db.Model(&SignalRecord{}).
		Where("market = ? AND date = ?", market, normalizeDate(date)).
		Count(&count).Error
	return count, err
}

// SaveMemory 落库信号记忆，同键覆盖
func (m *Manager) SaveMemory(mem *types.SignalMemory) error {
	record := SignalMemoryRecord{
		Name:       mem.Name,
		Market:     mem.Market,
		LastSignal: mem.LastSignal,
		LastAction: mem.LastAction,
		LastClose:  mem.LastClose,
		LastHigh5:  mem.LastHigh5,
		Date:       normalizeDate(mem.Date),
		UpdatedAt:  time.Now(),
	}
	return m.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}, {Name: "market"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_signal", "last_action", "last_close", "last_high5", "date", "updated_at",
		}),
	}).Create(&record).Error
}

// LoadMemories 取某市场全部信号记忆
func (m *Manager) LoadMemories(market string) (map[string]*types.SignalMemory, error) {
	var records []SignalMemoryRecord
	if err := m.db.Where("market = ?", market).Find(&records).Error; err != nil {
		return nil, err
	}

	memories := make(map[string]*types.SignalMemory, len(records))
	for i := range records {
		r := &records[i]
		memories[r.Name] = &types.SignalMemory{
			Name:       r.Name,
			Market:     r.Market,
			LastSignal: r.LastSignal,
			LastAction: r.LastAction,
			LastClose:  r.LastClose,
			LastHigh5:  r.LastHigh5,
			Date:       normalizeDate(r.Date),
		}
	}
	return memories, nil
}

// ResetSignals 清空某市场信号与记忆，全量回补前使用
func (m *Manager) ResetSignals(market string) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("market = ?", market).Delete(&SignalRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("market = ?", market).Delete(&SignalMemoryRecord{}).Error; err != nil {
			return err
		}
		zap.L().Info("🗑️ 信号与记忆已清空", zap.String("market", market))
		return nil
	})
}

func signalToRecord(s *types.Signal) SignalRecord {
	record := SignalRecord{
		Name:            s.Name,
		Market:          s.Market,
		Date:            normalizeDate(s.Date),
		Signal:          s.Signal,
		ConfidenceScore: s.ConfidenceScore,
		Volume:          s.Volume,
		Close:           s.Close,
		Change:          s.Change,
		Action:          s.Action,
		BuyRange:        s.BuyRange,
		Explanation:     s.Explanation,
		LimitStreak:     s.LimitStreak,
		CreatedAt:       time.Now(),
	}
	if s.Trades > 0 {
		trades := s.Trades
		record.Trades = &trades
	}
	if s.Value > 0 {
		value := s.Value
		record.Value = &value
	}
	if s.SignalTier != "" {
		tier := s.SignalTier
		record.SignalTier = &tier
	}
	return record
}

func recordToSignal(r *SignalRecord) *types.Signal {
	signal := &types.Signal{
		Name:            r.Name,
		Market:          r.Market,
		Date:            normalizeDate(r.Date),
		Signal:          r.Signal,
		ConfidenceScore: r.ConfidenceScore,
		Volume:          r.Volume,
		Close:           r.Close,
		Change:          r.Change,
		Action:          r.Action,
		BuyRange:        r.BuyRange,
		Explanation:     r.Explanation,
		LimitStreak:     r.LimitStreak,
	}
	if r.Trades != nil {
		signal.Trades = *r.Trades
	}
	if r.Value != nil {
		signal.Value = *r.Value
	}
	if r.SignalTier != nil {
		signal.SignalTier = *r.SignalTier
	}
	return signal
}
