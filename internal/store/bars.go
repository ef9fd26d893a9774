package store

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock-signal-sentry/pkg/types"
)

// SaveBars 批量写入日线行情，按 (name, market, date) 去重更新
func (m *Manager) SaveBars(bars []*types.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	records := make([]BarRecord, 0, len(bars))
	for _, b := range bars {
		records = append(records, barToRecord(b))
	}

	tx := m.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	// 分批处理避免单个事务过大
	batchSize := 100
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}

		batch := records[i:end]
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}, {Name: "market"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"open", "high", "low", "close", "previous_close",
				"change_pct", "volume", "trades", "value",
			}),
		}).CreateInBatches(batch, len(batch)).Error
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("批量写入行情失败: %v", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("提交行情事务失败: %v", err)
	}

	zap.L().Debug("✅ 批量保存行情完成",
		zap.Int("count", len(bars)),
		zap.String("market", bars[0].Market))

	return nil
}

// GetBarsThrough 取某市场截止到指定日期（含）的全部行情，按股票、日期升序
func (m *Manager) GetBarsThrough(market string, through time.Time) ([]*types.Bar, error) {
	var records []BarRecord
	err := m.db.Where("market = ? AND date <= ?", market, normalizeDate(through)).
		Order("name ASC, date ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	bars := make([]*types.Bar, 0, len(records))
	for i := range records {
		bars = append(bars, recordToBar(&records[i]))
	}
	return bars, nil
}

// DistinctDates 取某市场全部交易日，升序
func (m *Manager) DistinctDates(market string) ([]time.Time, error) {
	var dates []time.Time
	err := m.db.Model(&BarRecord{}).
		Where("market = ?", market).
		Distinct("date").
		Order("date ASC").
		Pluck("date", &dates).Error
	if err != nil {
		return nil, err
	}
	for i := range dates {
		dates[i] = normalizeDate(dates[i])
	}
	return dates, nil
}

// LatestDate 取某市场最新交易日
func (m *Manager) LatestDate(market string) (time.Time, error) {
	var record BarRecord
	err := m.db.Where("market = ?", market).
		Order("date DESC").
		First(&record).Error
	if err != nil {
		return time.Time{}, err
	}
	return normalizeDate(record.Date), nil
}

// CorrectClosePrices 修复缺失收盘价：close<=0 时回填 previous_close
func (m *Manager) CorrectClosePrices(market string) (int64, error) {
	result := m.db.Model(&BarRecord{}).
		Where("market = ? AND close <= 0 AND previous_close > 0", market).
		Update("close", gorm.Expr("previous_close"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		zap.L().Info("🔧 收盘价回填完成",
			zap.String("market", market),
			zap.Int64("rows", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// DeduplicateBars 去重维护，同键保留最新一条
func (m *Manager) DeduplicateBars(market string) (int64, error) {
	result := m.db.Exec(`
		DELETE FROM bars
		WHERE market = ?
		  AND id NOT IN (
			SELECT MAX(id) FROM bars WHERE market = ? GROUP BY name, market, date
		  )`, market, market)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		zap.L().Info("🧹 行情去重完成",
			zap.String("market", market),
			zap.Int64("removed", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

func barToRecord(b *types.Bar) BarRecord {
	record := BarRecord{
		Name:          b.Name,
		Market:        b.Market,
		Date:          normalizeDate(b.Date),
		Open:          b.Open,
		High:          b.High,
		Low:           b.Low,
		Close:         b.Close,
		PreviousClose: b.PreviousClose,
		Volume:        b.Volume,
		Trades:        b.Trades,
		Value:         b.Value,
		CreatedAt:     time.Now(),
	}
	if b.ChangePct != 0 {
		changePct := b.ChangePct
		record.ChangePct = &changePct
	}
	if b.Sector != "" {
		sector := b.Sector
		record.Sector = &sector
	}
	if b.SubSector != "" {
		subSector := b.SubSector
		record.SubSector = &subSector
	}
	return record
}

func recordToBar(r *BarRecord) *types.Bar {
	bar := &types.Bar{
		Name:          r.Name,
		Market:        r.Market,
		Date:          normalizeDate(r.Date),
		Open:          r.Open,
		High:          r.High,
		Low:           r.Low,
		Close:         r.Close,
		PreviousClose: r.PreviousClose,
		Volume:        r.Volume,
		Trades:        r.Trades,
		Value:         r.Value,
	}
	if r.ChangePct != nil {
		bar.ChangePct = *r.ChangePct
	}
	if r.Sector != nil {
		bar.Sector = *r.Sector
	}
	if r.SubSector != nil {
		bar.SubSector = *r.SubSector
	}
	return bar
}
