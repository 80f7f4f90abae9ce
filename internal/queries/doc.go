// Package queries provides the business boundary for customer-support query
// triage. It defines the Service (orchestration, lifecycle, events), the
// Classifier chain (remote model with deterministic keyword fallback), the
// Store interface (persistence), and domain models.
package queries
