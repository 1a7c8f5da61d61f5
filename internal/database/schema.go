package database

// schema returns the DDL applied at startup. Tables are created once and
// never migrated.
func schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS entities (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL UNIQUE,
        entity_type TEXT NOT NULL,
        observations TEXT NOT NULL DEFAULT '[]',
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    )`,

		`CREATE TABLE IF NOT EXISTS relations (
        id TEXT PRIMARY KEY,
        from_entity TEXT NOT NULL,
        to_entity TEXT NOT NULL,
        relation_type TEXT NOT NULL,
        created_at TEXT NOT NULL,
        UNIQUE (from_entity, to_entity, relation_type)
    )`,

		`CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_entity)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(to_entity)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_type ON relations(relation_type)`,
	}
}
