package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

// MaxTransactionWrites is the Firestore limit on writes in one transaction.
const MaxTransactionWrites = 500

type FirestoreStore struct {
	client    *firestore.Client
	projectID string
}

// OpenFirestore resolves credentials from inline JSON, then a key file, then
// application default credentials. A missing project id is read from the key.
func OpenFirestore(ctx context.Context, opts Options) (*FirestoreStore, error) {
	var (
		clientOpts []option.ClientOption
		keyJSON    []byte
	)
	switch {
	case opts.ServiceAccountJSON != "":
		keyJSON = []byte(opts.ServiceAccountJSON)
		clientOpts = append(clientOpts, option.WithCredentialsJSON(keyJSON))
	case opts.ServiceAccountPath != "":
		data, err := os.ReadFile(opts.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read service account file: %w", err)
		}
		keyJSON = data
		clientOpts = append(clientOpts, option.WithCredentialsJSON(keyJSON))
	}

	projectID := opts.ProjectID
	if projectID == "" && keyJSON != nil {
		id, err := projectFromKey(keyJSON)
		if err != nil {
			return nil, err
		}
		projectID = id
	}
	if projectID == "" {
		return nil, errors.New("project id is required: set --projectId or use a service account key that carries project_id")
	}

	client, err := firestore.NewClient(ctx, projectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client, projectID: projectID}, nil
}

func projectFromKey(keyJSON []byte) (string, error) {
	var key struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(keyJSON, &key); err != nil {
		return "", fmt.Errorf("failed to parse service account key: %w", err)
	}
	return key.ProjectID, nil
}

func (s *FirestoreStore) ProjectID() string {
	return s.projectID
}

// Commit writes the batch inside one transaction using merge upserts.
func (s *FirestoreStore) Commit(ctx context.Context, batch Batch) error {
	if n := batch.Size(); n > MaxTransactionWrites {
		return fmt.Errorf("batch of %d documents exceeds the %d-write transaction limit", n, MaxTransactionWrites)
	}

	docs := batch.documents()
	fields := make([]map[string]any, len(docs))
	for i, doc := range docs {
		m, err := toFields(doc.data)
		if err != nil {
			return fmt.Errorf("failed to encode %s/%s: %w", doc.collection, doc.id, err)
		}
		fields[i] = m
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for i, doc := range docs {
			ref := s.client.Collection(doc.collection).Doc(doc.id)
			if err := tx.Set(ref, fields[i], firestore.MergeAll); err != nil {
				return fmt.Errorf("failed to stage %s/%s: %w", doc.collection, doc.id, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// toFields converts a record to the map form MergeAll requires, using the
// record's JSON field names.
func toFields(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
