// Package postgres implements the service repository interfaces against
// PostgreSQL using database/sql and lib/pq.
//
// Conventions:
//   - sql.ErrNoRows maps to the owning service's ErrNotFound.
//   - unique_violation (23505) maps to the owning service's conflict error.
//   - multi-entity mutations run inside a single transaction; aggregate
//     updates use additive increments and GREATEST, never read-modify-write.
package postgres
