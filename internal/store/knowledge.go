package store

import "fmt"

// KBChunk is one indexed knowledge-base fragment.
type KBChunk struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
}

// InsertKBChunk indexes one knowledge-base chunk for full-text search.
func (d *DB) InsertKBChunk(c *KBChunk) error {
	if c.ID == "" {
		c.ID = GenID()
	}
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO kb_documents (id, source, chunk_index, content) VALUES (?, ?, ?, ?)",
		c.ID, c.Source, c.ChunkIndex, c.Content,
	); err != nil {
		return fmt.Errorf("insert kb document: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO kb_search (doc_id, source, content) VALUES (?, ?, ?)",
		c.ID, c.Source, c.Content,
	); err != nil {
		return fmt.Errorf("index kb document: %w", err)
	}
	return tx.Commit()
}

// SearchKB runs a full-text query and returns the best-matching chunks.
func (d *DB) SearchKB(match string, limit int) ([]*KBChunk, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := d.conn.Query(`
		SELECT doc_id, source, content
		FROM kb_search
		WHERE kb_search MATCH ?
		ORDER BY rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*KBChunk
	for rows.Next() {
		c := &KBChunk{}
		if err := rows.Scan(&c.ID, &c.Source, &c.Content); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// KBDocumentCount returns the number of indexed chunks.
func (d *DB) KBDocumentCount() int {
	var n int
	d.conn.QueryRow("SELECT COUNT(*) FROM kb_documents").Scan(&n)
	return n
}
