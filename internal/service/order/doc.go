// Package order implements the order ledger: server-computed order amounts
// and transactional reconciliation of customer aggregates.
//
// Every mutation that touches both an order and its customer's aggregates
// (total spend, visits, last active) goes through a repository method that
// applies both writes in one transaction. The service computes the deltas;
// the repository owns atomicity.
package order
