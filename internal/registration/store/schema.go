package store

// Schema creates the registrations table. It is additive and idempotent so
// the migrate command can run it on every deploy.
const Schema = `
CREATE TABLE IF NOT EXISTS registrations (
	id            BIGSERIAL PRIMARY KEY,
	name          VARCHAR(255),
	email         VARCHAR(255),
	phone         VARCHAR(20),
	institution   VARCHAR(255),
	topic         VARCHAR(100),
	registered_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
