package audit

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"lukechampine.com/blake3"

	"stakevault/core/events"
	"stakevault/core/types"
)

// ErrChainBroken is returned by Verify when a stored entry does not hash to
// the value recorded for it.
var ErrChainBroken = errors.New("audit: hash chain broken")

// Entry is one committed vault event. Each entry commits to its predecessor
// through PrevHash.
type Entry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Sequence   uint64    `gorm:"uniqueIndex;not null" json:"sequence"`
	Type       string    `gorm:"index;not null" json:"type"`
	Attributes string    `gorm:"type:text;not null" json:"attributes"`
	PrevHash   string    `gorm:"size:64" json:"prevHash"`
	Hash       string    `gorm:"size:64;uniqueIndex;not null" json:"hash"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName pins the journal table name.
func (Entry) TableName() string { return "vault_audit_entries" }

// Journal appends vault events to a relational store.
type Journal struct {
	db     *gorm.DB
	mu     sync.Mutex
	now    func() time.Time
	logger *slog.Logger
}

// Open connects to the Postgres journal database.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("audit: open postgres: %w", err)
	}
	return db, nil
}

// NewJournal migrates the schema and returns a journal bound to db.
func NewJournal(db *gorm.DB, logger *slog.Logger) (*Journal, error) {
	if db == nil {
		return nil, errors.New("audit: database required")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{db: db, now: time.Now, logger: logger}, nil
}

// SetNowFunc overrides the clock used for CreatedAt.
func (j *Journal) SetNowFunc(now func() time.Time) {
	if now != nil {
		j.now = now
	}
}

// Emit implements events.Emitter. Failures are logged; the vault operation
// that produced the event has already committed.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || evt == nil {
		return
	}
	if _, err := j.Append(context.Background(), evt.Event()); err != nil {
		j.logger.Error("audit append failed", "type", evt.EventType(), "error", err)
	}
}

// Append stores evt as the next entry of the chain.
func (j *Journal) Append(ctx context.Context, evt *types.Event) (*Entry, error) {
	if evt == nil {
		return nil, errors.New("audit: nil event")
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return nil, fmt.Errorf("audit: encode attributes: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	var entry *Entry
	err = j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last Entry
		seq := uint64(1)
		prev := ""
		res := tx.Order("sequence desc").Limit(1).Find(&last)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			seq = last.Sequence + 1
			prev = last.Hash
		}
		entry = &Entry{
			ID:         uuid.New(),
			Sequence:   seq,
			Type:       evt.Type,
			Attributes: string(attrs),
			PrevHash:   prev,
			CreatedAt:  j.now().UTC(),
		}
		entry.Hash = entryHash(entry)
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, fmt.Errorf("audit: append: %w", err)
	}
	return entry, nil
}

// List returns up to limit entries with sequence greater than after.
func (j *Journal) List(ctx context.Context, after uint64, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	var entries []Entry
	err := j.db.WithContext(ctx).
		Where("sequence > ?", after).
		Order("sequence asc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return entries, nil
}

// Verify walks the whole journal and checks every link of the chain.
func (j *Journal) Verify(ctx context.Context) error {
	prev := ""
	var after uint64
	for {
		batch, err := j.List(ctx, after, 500)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		for i := range batch {
			entry := &batch[i]
			if entry.PrevHash != prev || entryHash(entry) != entry.Hash {
				return fmt.Errorf("%w at sequence %d", ErrChainBroken, entry.Sequence)
			}
			prev = entry.Hash
			after = entry.Sequence
		}
	}
}

func entryHash(e *Entry) string {
	h := blake3.New(32, nil)
	h.Write([]byte(e.PrevHash))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(e.Sequence, 10)))
	h.Write([]byte{0})
	h.Write([]byte(e.Type))
	h.Write([]byte{0})
	h.Write([]byte(e.Attributes))
	return hex.EncodeToString(h.Sum(nil))
}
