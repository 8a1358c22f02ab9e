// Package domain defines core data models and interfaces shared across the app.
// It contains plain types (identities, trust records, message events) and
// contracts (engine, transports, stores) only.
package domain
