package sqlite

// Schema DDL. Documents of every set share one table; row_id orders a set
// by insertion.
const (
	createDocuments = `CREATE TABLE IF NOT EXISTS documents (
    set_name TEXT NOT NULL,
    doc_key TEXT NOT NULL,
    row_id TEXT NOT NULL,
    body TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (set_name, doc_key)
);`

	idxDocumentsOrder = `CREATE INDEX IF NOT EXISTS idx_documents_order ON documents(set_name, row_id);`
)

// schemaDDL lists the statements run on Attach, in order.
var schemaDDL = []string{
	createDocuments,
	idxDocumentsOrder,
}

// Document statements.
const (
	selectBodies  = `SELECT body FROM documents WHERE set_name = ? ORDER BY row_id`
	selectExists  = `SELECT 1 FROM documents WHERE set_name = ? AND doc_key = ?`
	insertDoc     = `INSERT INTO documents (set_name, doc_key, row_id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	updateDoc     = `UPDATE documents SET body = ?, updated_at = ? WHERE set_name = ? AND doc_key = ?`
	deleteDoc     = `DELETE FROM documents WHERE set_name = ? AND doc_key = ?`
	deleteSetDocs = `DELETE FROM documents WHERE set_name = ?`
)
