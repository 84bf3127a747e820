// Package models contains the GORM persistence models for the ledger tables.
// Domain entities stay free of ORM tags; each model maps to and from its
// entity with ToDomain and a ...ModelFromDomain constructor.
//
// Column types are chosen so the same models work against PostgreSQL (where
// migrations/ owns the schema) and SQLite (where AutoMigrate creates it).
// Time columns carry no explicit type for that reason.
package models
