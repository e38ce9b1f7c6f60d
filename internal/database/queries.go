package database

import (
	"database/sql"
	"errors"
	"fmt"

	"estatechain/server/internal/models"
)

// GetPropertyRecord returns the projection of propertyID.
func (d *Database) GetPropertyRecord(propertyID uint64) (*PropertyRecord, error) {
	row := d.db.QueryRow(`
		SELECT
			property_id,
			COALESCE(token_id, 0),
			stage,
			owner,
			price,
			COALESCE(property_type, 0),
			location,
			metadata_uri,
			image_cid,
			COALESCE(verified, 0),
			last_tx_hash,
			created_at,
			updated_at
		FROM properties
		WHERE property_id = ?
	`, propertyID)

	var r PropertyRecord
	var owner, price, location, metadataURI, imageCID, lastTxHash sql.NullString
	err := row.Scan(
		&r.PropertyID,
		&r.TokenID,
		&r.Stage,
		&owner,
		&price,
		&r.PropertyType,
		&location,
		&metadataURI,
		&imageCID,
		&r.Verified,
		&lastTxHash,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no journal entry for id %d", models.ErrNotFound, propertyID)
	}
	if err != nil {
		return nil, err
	}

	r.Owner = owner.String
	r.Price = price.String
	r.Location = location.String
	r.MetadataURI = metadataURI.String
	r.ImageCID = imageCID.String
	r.LastTxHash = lastTxHash.String
	return &r, nil
}

// GetTransitions returns the recorded history of propertyID, oldest first.
func (d *Database) GetTransitions(propertyID uint64) ([]TransitionRecord, error) {
	rows, err := d.db.Query(`
		SELECT id, property_id, stage, account, tx_hash, request_id, price, occurred_at
		FROM property_transitions
		WHERE property_id = ?
		ORDER BY occurred_at, stage
	`, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transitions := make([]TransitionRecord, 0)
	for rows.Next() {
		var t TransitionRecord
		var account, txHash, requestID, price sql.NullString
		if err := rows.Scan(&t.ID, &t.PropertyID, &t.Stage, &account, &txHash, &requestID, &price, &t.OccurredAt); err != nil {
			return nil, err
		}
		t.Account = account.String
		t.TxHash = txHash.String
		t.RequestID = requestID.String
		t.Price = price.String
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}

// CountProperties returns the number of properties in the journal.
func (d *Database) CountProperties() (int, error) {
	var count int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM properties`).Scan(&count)
	return count, err
}
