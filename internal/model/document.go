package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Direction is a query ordering direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Document is a schemaless record in a store collection.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Query selects a whole collection ordered by one field.
type Query struct {
	Collection string    `json:"collection"`
	OrderBy    string    `json:"orderBy"`
	Direction  Direction `json:"direction"`
}

// SnapshotFunc receives either the full ordered result set of a query or a
// delivery error. Calls for one subscription never overlap.
type SnapshotFunc func(docs []Document, err error)

// Unsubscribe releases a subscription. No callback runs after it returns.
type Unsubscribe func()

// DocumentStore is the document database collaborator.
type DocumentStore interface {
	// Subscribe delivers the current result set, then a full result set on
	// every change to the collection, until the returned Unsubscribe is called.
	Subscribe(ctx context.Context, query Query, onSnapshot SnapshotFunc) (Unsubscribe, error)
	// AddDocument stores a new document and returns the id the store assigned.
	AddDocument(ctx context.Context, collection string, fields map[string]any) (string, error)
	// UpdateDocument merges fields into an existing document.
	UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error
}

// TaskQuery is the live query used by the task feed.
func TaskQuery() Query {
	return Query{
		Collection: TasksCollection,
		OrderBy:    FieldCreatedAt,
		Direction:  Descending,
	}
}

// DecodeFields parses stored JSON document fields, keeping numbers exact.
func DecodeFields(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to decode document fields: %w", err)
	}
	return fields, nil
}
