package database

import "fmt"

func (d *Database) RunMigrations() error {
	// One projection row per property; stage only moves forward
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS properties (
			property_id INTEGER PRIMARY KEY,
			token_id INTEGER,
			stage INTEGER NOT NULL DEFAULT 0,
			owner TEXT,
			price TEXT,
			property_type INTEGER,
			location TEXT,
			metadata_uri TEXT,
			image_cid TEXT,
			verified BOOLEAN DEFAULT 0,
			last_tx_hash TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create properties table: %v", err)
	}

	_, err = d.db.Exec(`
		CREATE TABLE IF NOT EXISTS property_transitions (
			id TEXT PRIMARY KEY,
			property_id INTEGER NOT NULL REFERENCES properties(property_id),
			stage INTEGER NOT NULL,
			account TEXT,
			tx_hash TEXT,
			request_id TEXT,
			price TEXT,
			occurred_at TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create property_transitions table: %v", err)
	}

	// Single-row notifier settings edited through the API
	_, err = d.db.Exec(`
		CREATE TABLE IF NOT EXISTS telegram_config (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			is_enabled BOOLEAN NOT NULL DEFAULT 0,
			bot_token TEXT,
			chat_id TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create telegram_config table: %v", err)
	}

	_, err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_transitions_property
		ON property_transitions(property_id, occurred_at);
	`)
	if err != nil {
		return err
	}

	return nil
}
