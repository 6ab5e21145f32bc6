package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"gorm.io/gorm"

	"stakevault/core/events"
	"stakevault/crypto"
)

func newTestJournal(t *testing.T) (*Journal, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	journal, err := NewJournal(db, nil)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	journal.SetNowFunc(func() time.Time { return fixed })
	return journal, db
}

func depositEvent(amount uint64) events.Event {
	return events.StakeDeposited{
		Owner:       crypto.ModuleAddress("alice"),
		Amount:      amount,
		TotalStaked: amount,
		Active:      amount,
		Timestamp:   1_000,
	}
}

func TestJournalAppendChainsEntries(t *testing.T) {
	journal, _ := newTestJournal(t)
	ctx := context.Background()

	first, err := journal.Append(ctx, depositEvent(100).Event())
	require.NoError(t, err)
	second, err := journal.Append(ctx, depositEvent(200).Event())
	require.NoError(t, err)

	require.Equal(t, uint64(1), first.Sequence)
	require.Empty(t, first.PrevHash)
	require.Equal(t, uint64(2), second.Sequence)
	require.Equal(t, first.Hash, second.PrevHash)
	require.NotEqual(t, first.Hash, second.Hash)

	entries, err := journal.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, events.TypeStakeDeposited, entries[0].Type)
	require.Contains(t, entries[1].Attributes, `"amount":"200"`)
	require.NoError(t, journal.Verify(ctx))
}

func TestJournalVerifyDetectsTampering(t *testing.T) {
	journal, db := newTestJournal(t)
	ctx := context.Background()

	journal.Emit(depositEvent(10))
	journal.Emit(depositEvent(20))
	journal.Emit(depositEvent(30))

	err := db.Model(&Entry{}).Where("sequence = ?", 2).Update("attributes", `{"amount":"9999"}`).Error
	require.NoError(t, err)

	err = journal.Verify(ctx)
	require.ErrorIs(t, err, ErrChainBroken)
	require.Contains(t, err.Error(), "sequence 2")
}

func TestJournalExportParquet(t *testing.T) {
	journal, _ := newTestJournal(t)
	ctx := context.Background()
	for i := uint64(1); i <= 3; i++ {
		_, err := journal.Append(ctx, depositEvent(i*10).Event())
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "audit.parquet")
	written, err := journal.ExportParquet(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 3, written)

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(parquetRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.Equal(t, int64(3), pr.GetNumRows())

	rows := make([]parquetRow, 3)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, int64(1), rows[0].Sequence)
	require.Equal(t, rows[0].Hash, rows[1].PrevHash)
	require.Equal(t, "2026-03-01T12:00:00Z", rows[2].CreatedAt)
	require.Equal(t, events.TypeStakeDeposited, rows[0].Type)
}

func TestJournalExportParquetLeavesNoFileOnFailure(t *testing.T) {
	journal, db := newTestJournal(t)
	ctx := context.Background()
	_, err := journal.Append(ctx, depositEvent(10).Event())
	require.NoError(t, err)
	require.NoError(t, db.Migrator().DropTable(&Entry{}))

	dir := t.TempDir()
	path := filepath.Join(dir, "audit.parquet")
	written, err := journal.ExportParquet(ctx, path)
	require.Error(t, err)
	require.Zero(t, written)

	leftovers, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestNewJournalRequiresDatabase(t *testing.T) {
	_, err := NewJournal(nil, nil)
	require.Error(t, err)
}
