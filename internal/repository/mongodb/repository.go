package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jopa/salestracker/internal/domain/models"
)

const collectionName = "report_snapshots"

// ErrSnapshotNotFound is returned when no archived snapshot matches.
var ErrSnapshotNotFound = errors.New("report snapshot not found")

// ReportSnapshot is the archived copy of a stored report and the metrics behind it.
type ReportSnapshot struct {
	ReportID   uint                   `bson:"report_id"`
	Title      string                 `bson:"title"`
	ReportType models.ReportType      `bson:"report_type"`
	ReportDate string                 `bson:"report_date"`
	StartDate  time.Time              `bson:"start_date"`
	EndDate    time.Time              `bson:"end_date"`
	Metrics    models.MetricsSnapshot `bson:"metrics"`
	ArchivedAt time.Time              `bson:"archived_at"`
}

// Archive stores one document per report in MongoDB.
type Archive struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewArchive connects to MongoDB and ensures the report_id index exists.
func NewArchive(ctx context.Context, uri, dbName string) (*Archive, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	collection := client.Database(dbName).Collection(collectionName)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "report_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create report_id index: %w", err)
	}

	return &Archive{client: client, collection: collection}, nil
}

// NewSnapshot converts a report document into its archived form.
func NewSnapshot(doc models.ReportDocument, archivedAt time.Time) ReportSnapshot {
	return ReportSnapshot{
		ReportID:   doc.Report.ID,
		Title:      doc.Report.Title,
		ReportType: doc.Report.ReportType,
		ReportDate: doc.Snapshot.Today.Start.Format("2006-01-02"),
		StartDate:  doc.Report.StartDate,
		EndDate:    doc.Report.EndDate,
		Metrics:    doc.Snapshot,
		ArchivedAt: archivedAt.UTC(),
	}
}

// Name identifies the sink in logs.
func (a *Archive) Name() string { return "mongodb" }

// Publish upserts the snapshot for doc's report.
func (a *Archive) Publish(ctx context.Context, doc models.ReportDocument) error {
	snapshot := NewSnapshot(doc, time.Now())
	_, err := a.collection.ReplaceOne(ctx,
		bson.M{"report_id": snapshot.ReportID},
		snapshot,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to archive report %d: %w", snapshot.ReportID, err)
	}
	return nil
}

// Find returns the archived snapshot for reportID.
func (a *Archive) Find(ctx context.Context, reportID uint) (*ReportSnapshot, error) {
	var snapshot ReportSnapshot
	err := a.collection.FindOne(ctx, bson.M{"report_id": reportID}).Decode(&snapshot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %d: %w", reportID, err)
	}
	return &snapshot, nil
}

// Close closes the MongoDB connection.
func (a *Archive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
