package storage

import (
	"context"
	"errors"
	"time"

	"raffle/internal/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// gormWriter sends gorm's own log lines to the "gorm" child logger.
type gormWriter struct {
	log *zap.SugaredLogger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warnf(format, args...)
}

var _ Storage = (*SqliteStorage)(nil)

type SqliteStorage struct {
	db *gorm.DB
}

func NewSqliteStorage(path string) (*SqliteStorage, error) {
	logger.Debug("initializing database...", zap.String("path", path))
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.New(gormWriter{log: logger.Named("gorm").Sugar()}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&Raffle{},
		&Entrant{},
		&Round{},
	)

	if err != nil {
		return nil, err
	}

	logger.Debug("initializing database... done")
	return &SqliteStorage{
		db: db,
	}, nil
}

func (s *SqliteStorage) LoadRaffle(ctx context.Context) (*Raffle, error) {
	logger.Debug("loading raffle...")

	var raffle Raffle
	err := s.db.WithContext(ctx).
		Preload("Entrants", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc")
		}).
		First(&raffle, RaffleID).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	logger.Debug("loading raffle... done", zap.String("state", raffle.State), zap.Int("entrants", len(raffle.Entrants)))
	return &raffle, nil
}

// SaveRaffle replaces the stored aggregate, entrants included, in one transaction.
func (s *SqliteStorage) SaveRaffle(ctx context.Context, raffle *Raffle) error {
	logger.Debug("saving raffle...", zap.String("state", raffle.State))

	row := *raffle
	row.ID = RaffleID
	row.Entrants = nil

	entrants := make([]Entrant, len(raffle.Entrants))
	for i, entrant := range raffle.Entrants {
		entrants[i] = Entrant{
			RaffleID: RaffleID,
			Position: entrant.Position,
			Address:  entrant.Address,
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&row).Error
		if err != nil {
			return err
		}

		if err := tx.Where("raffle_id = ?", RaffleID).Delete(&Entrant{}).Error; err != nil {
			return err
		}

		if len(entrants) == 0 {
			return nil
		}

		return tx.CreateInBatches(entrants, 100).Error
	})

	if err != nil {
		return err
	}

	logger.Debug("saving raffle... done")
	return nil
}

func (s *SqliteStorage) SaveRound(ctx context.Context, round *Round) error {
	logger.Debug("saving round...", zap.String("round id", round.RoundID), zap.String("status", round.Status))

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "round_id"}},
		UpdateAll: true,
	}).Create(round).Error

	if err != nil {
		return err
	}

	logger.Debug("saving round... done")
	return nil
}

func (s *SqliteStorage) ListRounds(ctx context.Context, limit int) ([]*Round, error) {
	var rounds []*Round
	query := s.db.WithContext(ctx).Order("round desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&rounds).Error; err != nil {
		return nil, err
	}

	return rounds, nil
}

func (s *SqliteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
