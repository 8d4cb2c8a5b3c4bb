// Package customer implements customer lifecycle management: creation,
// lookup, search, bulk import, and deletion.
//
// Aggregate fields on a customer (total spend, visits, last active) are
// owned by the order ledger and must not be written through this service.
// Repository implementations live in repository/postgres/.
package customer
