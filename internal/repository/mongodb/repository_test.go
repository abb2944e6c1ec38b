package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/jopa/salestracker/internal/domain/models"
)

func sampleDocument() models.ReportDocument {
	today := models.DayWindow(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), time.UTC)
	return models.ReportDocument{
		Report: models.Report{
			ID:         9,
			Title:      "Daily Report - 2025-03-10",
			ReportType: models.ReportDaily,
			StartDate:  today.Start,
			EndDate:    today.End,
		},
		Snapshot: models.MetricsSnapshot{
			Today:               today,
			TotalSales:          177.5,
			DayOverDayGrowthPct: 17750,
		},
	}
}

func TestNewSnapshot(t *testing.T) {
	archivedAt := time.Date(2025, 3, 11, 0, 0, 5, 0, time.UTC)
	snapshot := NewSnapshot(sampleDocument(), archivedAt)

	assert.Equal(t, uint(9), snapshot.ReportID)
	assert.Equal(t, "2025-03-10", snapshot.ReportDate)
	assert.Equal(t, models.ReportDaily, snapshot.ReportType)
	assert.InDelta(t, 17750.0, snapshot.Metrics.DayOverDayGrowthPct, 1e-9)
	assert.Equal(t, archivedAt, snapshot.ArchivedAt)
}

func TestArchive(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("publish upserts by report id", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 0}})
		archive := &Archive{client: mt.Client, collection: mt.Coll}

		require.NoError(t, archive.Publish(context.Background(), sampleDocument()))
		assert.Equal(t, "mongodb", archive.Name())
	})

	mt.Run("publish surfaces write errors", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}))
		archive := &Archive{client: mt.Client, collection: mt.Coll}

		assert.Error(t, archive.Publish(context.Background(), sampleDocument()))
	})

	mt.Run("find decodes snapshot", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "report_id", Value: 9},
			{Key: "title", Value: "Daily Report - 2025-03-10"},
			{Key: "report_date", Value: "2025-03-10"},
		}))
		archive := &Archive{client: mt.Client, collection: mt.Coll}

		snapshot, err := archive.Find(context.Background(), 9)
		require.NoError(t, err)
		assert.Equal(t, uint(9), snapshot.ReportID)
		assert.Equal(t, "2025-03-10", snapshot.ReportDate)
	})

	mt.Run("find reports missing snapshot", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		archive := &Archive{client: mt.Client, collection: mt.Coll}

		_, err := archive.Find(context.Background(), 404)
		assert.ErrorIs(t, err, ErrSnapshotNotFound)
	})
}
