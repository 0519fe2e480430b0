// Package domain contains the core business entities and rules for docquery.
// It has no dependencies on adapters or external services, making it the
// stable centre of the hexagonal architecture.
package domain
