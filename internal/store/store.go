package store

import (
	"context"
	"io"

	"mbn/pkg/codec"
	"mbn/pkg/metadata"
	"mbn/pkg/record"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
)

const defaultBatchSize = 1000

// Store persists decoded records into postgres tables.
type Store struct {
	db        *gorm.DB
	batchSize int
}

// New wraps db. batchSize <= 0 selects the default.
func New(db *gorm.DB, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Store{db: db, batchSize: batchSize}
}

// Migrate creates or updates the record tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return errors.Wrap(err, "migrate")
	}
	return nil
}

// Save maps recs to rows and inserts them in one transaction.
func (s *Store) Save(ctx context.Context, recs []record.RecordEnum, symbols metadata.SymbolMap) (int, error) {
	var batch Batch
	for _, rec := range recs {
		if err := batch.Add(rec, symbols); err != nil {
			return 0, err
		}
	}
	if err := s.flush(ctx, &batch); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Load streams every record of dec into the tables, committing one
// transaction per batch. It returns the number of rows written.
func (s *Store) Load(ctx context.Context, dec *codec.Decoder) (int, error) {
	var symbols metadata.SymbolMap
	if meta := dec.Metadata(); meta != nil {
		symbols = meta.Mappings
	}

	var (
		batch Batch
		total int
	)
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		rec, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}
		if err := batch.Add(rec, symbols); err != nil {
			return total, err
		}
		if batch.Len() >= s.batchSize {
			n := batch.Len()
			if err := s.flush(ctx, &batch); err != nil {
				return total, err
			}
			total += n
		}
	}

	n := batch.Len()
	if err := s.flush(ctx, &batch); err != nil {
		return total, err
	}
	total += n
	logs.Infof("store: loaded %d rows", total)
	return total, nil
}

func (s *Store) flush(ctx context.Context, batch *Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(batch.Bars) > 0 {
			if err := tx.CreateInBatches(batch.Bars, s.batchSize).Error; err != nil {
				return errors.Wrap(err, "insert bars")
			}
		}
		if len(batch.Quotes) > 0 {
			if err := tx.CreateInBatches(batch.Quotes, s.batchSize).Error; err != nil {
				return errors.Wrap(err, "insert quotes")
			}
		}
		if len(batch.Trades) > 0 {
			if err := tx.CreateInBatches(batch.Trades, s.batchSize).Error; err != nil {
				return errors.Wrap(err, "insert trades")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	batch.Reset()
	return nil
}
