package database

import (
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

// Schema contains the three bucket tables. Each bucket carries the same
// column set so a row can be copied across buckets during escalation.
const Schema = `
CREATE TABLE IF NOT EXISTS reports (
	id INT AUTO_INCREMENT PRIMARY KEY,
	original_url VARCHAR(512) NOT NULL UNIQUE,
	final_url VARCHAR(512),
	domain VARCHAR(255),
	ssl_valid BOOLEAN NOT NULL DEFAULT FALSE,
	whois_creation_date VARCHAR(128),
	reputation_score VARCHAR(128),
	phishtank_result BOOLEAN NOT NULL DEFAULT FALSE,
	label VARCHAR(16) NOT NULL,
	count INT NOT NULL DEFAULT 1,
	reported_count INT NOT NULL DEFAULT 0,
	analysis_json TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS suspected (
	id INT AUTO_INCREMENT PRIMARY KEY,
	original_url VARCHAR(512) NOT NULL UNIQUE,
	final_url VARCHAR(512),
	domain VARCHAR(255),
	ssl_valid BOOLEAN NOT NULL DEFAULT FALSE,
	whois_creation_date VARCHAR(128),
	reputation_score VARCHAR(128),
	phishtank_result BOOLEAN NOT NULL DEFAULT FALSE,
	label VARCHAR(16) NOT NULL,
	count INT NOT NULL DEFAULT 1,
	reported_count INT NOT NULL DEFAULT 0,
	analysis_json TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS warning (
	id INT AUTO_INCREMENT PRIMARY KEY,
	original_url VARCHAR(512) NOT NULL UNIQUE,
	final_url VARCHAR(512),
	domain VARCHAR(255),
	ssl_valid BOOLEAN NOT NULL DEFAULT FALSE,
	whois_creation_date VARCHAR(128),
	reputation_score VARCHAR(128),
	phishtank_result BOOLEAN NOT NULL DEFAULT FALSE,
	label VARCHAR(16) NOT NULL,
	count INT NOT NULL DEFAULT 1,
	reported_count INT NOT NULL DEFAULT 0,
	analysis_json TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

// InitializeSchema creates the bucket tables if they do not exist.
func InitializeSchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info("Database schema initialized successfully")
	return nil
}
