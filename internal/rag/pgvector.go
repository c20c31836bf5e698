package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// chunkTable is the Postgres table every collection shares. Rows are
// partitioned logically by the collection column.
const chunkTable = "resume_chunks"

// chunkRecord is the gorm model for one stored chunk.
type chunkRecord struct {
	ID         string            `gorm:"type:uuid;primaryKey"`
	Collection string            `gorm:"type:text;not null;index"`
	Content    string            `gorm:"type:text;not null"`
	Source     string            `gorm:"type:text"`
	Metadata   map[string]string `gorm:"type:jsonb;serializer:json"`
	Embedding  pgvector.Vector   `gorm:"type:vector"`
	CreatedAt  time.Time         `gorm:"autoCreateTime"`
}

// TableName pins the table name for gorm.
func (chunkRecord) TableName() string { return chunkTable }

// scoredChunk is a chunkRecord with its cosine similarity to the query.
type scoredChunk struct {
	chunkRecord
	Score float64
}

// PGVectorConfig holds connection parameters for the Postgres/pgvector store.
type PGVectorConfig struct {
	// DSN is the Postgres connection string.
	DSN string

	// Dimensions is the embedding vector size used for the vector column.
	Dimensions int
}

// PGVectorStore implements VectorStore on Postgres with the pgvector
// extension, accessed through gorm.
type PGVectorStore struct {
	db *gorm.DB
}

// NewPGVectorStore connects to Postgres, enables the vector extension and
// creates the chunk table if needed.
func NewPGVectorStore(ctx context.Context, cfg *PGVectorConfig) (*PGVectorStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector: connection string must be set")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("pgvector: dimensions must be positive")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("pgvector: failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("pgvector: failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := &PGVectorStore{db: db}
	if err := s.migrate(ctx, cfg.Dimensions); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// migrate applies the schema DDL. Every statement is idempotent.
func (s *PGVectorStore) migrate(ctx context.Context, dims int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          UUID PRIMARY KEY,
			collection  TEXT NOT NULL,
			content     TEXT NOT NULL,
			source      TEXT,
			metadata    JSONB,
			embedding   vector(%d) NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, chunkTable, dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_collection ON %s (collection)`, chunkTable, chunkTable),
	}
	for _, stmt := range stmts {
		if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("pgvector: migration failed: %w", err)
		}
	}
	return nil
}

// Upsert inserts docs into collection, overwriting rows with the same ID.
func (s *PGVectorStore) Upsert(ctx context.Context, collection string, docs []Document, embeddings [][]float32) error {
	if err := checkParallel(collection, docs, embeddings); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	records := make([]chunkRecord, 0, len(docs))
	for i, doc := range docs {
		records = append(records, chunkRecord{
			ID:         doc.ID,
			Collection: collection,
			Content:    doc.Content,
			Source:     doc.Source,
			Metadata:   doc.Metadata,
			Embedding:  pgvector.NewVector(embeddings[i]),
		})
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"collection", "content", "source", "metadata", "embedding"}),
		}).
		CreateInBatches(records, 100).Error
	if err != nil {
		return fmt.Errorf("pgvector: upsert into %q failed: %w", collection, err)
	}
	return nil
}

// Search orders the rows of collection by cosine distance to the query.
func (s *PGVectorStore) Search(ctx context.Context, collection string, queryEmbedding []float32, topK int) ([]Document, error) {
	if collection == "" {
		return nil, ErrEmptyCollection
	}

	query := pgvector.NewVector(queryEmbedding)
	var rows []scoredChunk
	err := s.db.WithContext(ctx).
		Table(chunkTable).
		Select("*, 1 - (embedding <=> ?) AS score", query).
		Where("collection = ?", collection).
		Order(gorm.Expr("embedding <=> ?", query)).
		Limit(topK).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pgvector: search in %q failed: %w", collection, err)
	}

	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, Document{
			ID:       r.ID,
			Content:  r.Content,
			Source:   r.Source,
			Metadata: r.Metadata,
			Score:    float32(r.Score),
		})
	}
	return docs, nil
}

// Ping checks the database connection.
func (s *PGVectorStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("pgvector: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("pgvector: ping failed: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *PGVectorStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
