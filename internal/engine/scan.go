package engine

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Base attribute keys merged into every scanned document.
const (
	AttrID        = "id"
	AttrCreatedAt = "createdAt"
	AttrUpdatedAt = "updatedAt"
)

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanDocument scans one storage row into a document map: the JSONB
// attributes plus the base id/createdAt/updatedAt attributes. Base
// attributes win over same-named keys smuggled into the document.
func scanDocument(row scanner) (map[string]interface{}, error) {
	var (
		id        string
		payload   []byte
		createdAt time.Time
		updatedAt time.Time
	)

	if err := row.Scan(&id, &payload, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	record := make(map[string]interface{})
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
		}
	}

	record[AttrID] = id
	record[AttrCreatedAt] = createdAt
	record[AttrUpdatedAt] = updatedAt
	return record, nil
}

// scanDocuments scans a result set into document maps.
func scanDocuments(rows *sql.Rows) ([]map[string]interface{}, error) {
	var results []map[string]interface{}

	for rows.Next() {
		record, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
