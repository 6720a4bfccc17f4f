package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Gorm is a Store over a SQL database. The unique index on
// (chat_id, contract_address) and conditional UPDATEs carry the invariants.
type Gorm struct {
	db *gorm.DB
}

// OpenGorm connects with driver "sqlite" or "postgres" and migrates the schema.
func OpenGorm(driver, dsn string) (*Gorm, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return NewGorm(db)
}

// NewGorm wraps an existing connection and migrates the schema.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&PollRecord{}, &VotePreference{}, &AthRecord{}, &Setting{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (s *Gorm) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Gorm) CreatePoll(ctx context.Context, rec *PollRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPollExists
	}
	return nil
}

func (s *Gorm) GetPoll(ctx context.Context, chatID int64, ca string) (*PollRecord, error) {
	var rec PollRecord
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND contract_address = ?", chatID, ca).
		First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (s *Gorm) GetPollByTelegramID(ctx context.Context, pollID string) (*PollRecord, error) {
	var rec PollRecord
	if err := s.db.WithContext(ctx).Where("telegram_poll_id = ?", pollID).First(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// conditional runs a guarded UPDATE and maps "no rows" to either
// ErrNotFound or conflict.
func (s *Gorm) conditional(ctx context.Context, chatID int64, ca, guard string, updates map[string]any, conflict error) error {
	res := s.db.WithContext(ctx).Model(&PollRecord{}).
		Where("chat_id = ? AND contract_address = ?", chatID, ca).
		Where(guard).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := s.GetPoll(ctx, chatID, ca); err != nil {
		return err
	}
	return conflict
}

func (s *Gorm) AttachPoll(ctx context.Context, chatID int64, ca string, messageID int, pollID string) error {
	return s.conditional(ctx, chatID, ca, "telegram_poll_id IS NULL",
		map[string]any{"message_id": messageID, "telegram_poll_id": pollID}, ErrPollAttached)
}

func (s *Gorm) ResolveVote(ctx context.Context, chatID int64, ca, v string, at time.Time) error {
	return s.conditional(ctx, chatID, ca, "vote IS NULL",
		map[string]any{"vote": v, "voted_at": at}, ErrAlreadyResolved)
}

func (s *Gorm) RaisePeak(ctx context.Context, chatID int64, ca string, price float64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&PollRecord{}).
		Where("chat_id = ? AND contract_address = ?", chatID, ca).
		Where("peak_price_usd IS NULL OR peak_price_usd < ?", price).
		Update("peak_price_usd", price)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Gorm) FirstCall(ctx context.Context, ca string) (*PollRecord, error) {
	var rec PollRecord
	err := s.db.WithContext(ctx).
		Where("contract_address = ? AND entry_price_usd IS NOT NULL", ca).
		Order("created_at ASC").
		First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (s *Gorm) ListResolved(ctx context.Context, q ResolvedQuery) ([]PollRecord, error) {
	query := s.db.WithContext(ctx).Model(&PollRecord{}).
		Where("vote IS NOT NULL AND entry_price_usd IS NOT NULL").
		Where("created_at >= ?", q.Since.UTC())
	if q.ChatID != 0 {
		query = query.Where("chat_id = ?", q.ChatID)
	}
	if q.Category != "" {
		// Narrow in SQL, then check set membership below.
		query = query.Where("vote LIKE ?", "%"+q.Category+"%")
	}
	var rows []PollRecord
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := rows[:0]
	for i := range rows {
		if q.match(&rows[i]) {
			out = append(out, rows[i])
		}
	}
	return out, nil
}

func (s *Gorm) ListPolls(ctx context.Context) ([]PollRecord, error) {
	var rows []PollRecord
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Gorm) CountPolls(ctx context.Context) (Counts, error) {
	var total, open int64
	db := s.db.WithContext(ctx).Model(&PollRecord{})
	if err := db.Count(&total).Error; err != nil {
		return Counts{}, err
	}
	if err := s.db.WithContext(ctx).Model(&PollRecord{}).Where("vote IS NULL").Count(&open).Error; err != nil {
		return Counts{}, err
	}
	return Counts{Total: int(total), Open: int(open), Resolved: int(total - open)}, nil
}

func (s *Gorm) GetPreference(ctx context.Context, userID int64, ca string) (*VotePreference, error) {
	var p VotePreference
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND contract_address = ?", userID, ca).
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Gorm) PutPreference(ctx context.Context, p VotePreference) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "contract_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "vote", "updated_at"}),
	}).Create(&p).Error
}

func (s *Gorm) GetATH(ctx context.Context, ca string) (*AthRecord, error) {
	var a AthRecord
	if err := s.db.WithContext(ctx).Where("contract_address = ?", ca).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *Gorm) RaiseATH(ctx context.Context, rec AthRecord) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contract_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"max_price_usd", "coin_name", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("token_ath.max_price_usd < excluded.max_price_usd"),
		}},
	}).Create(&rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Gorm) GetSetting(ctx context.Context, key string) (string, error) {
	var st Setting
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&st).Error; err != nil {
		return "", notFound(err)
	}
	return st.Value, nil
}

func (s *Gorm) SetSetting(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}).Error
}
