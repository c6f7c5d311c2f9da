// Package models defines the core domain types for the group ledger.
//
// # Models
//
//   - Entry: one dated amount in the unpaid or paid ledger
//   - Invoice: one pending amount tagged with a supplier name
//   - GroupRecord: the three per-contributor ledgers owned by one group
//
// Contributors are identified by the opaque user ID string the chat
// platform hands us; there are no user accounts.
//
// # Design Principles
//
// 1. **Decimal money**: amounts are shopspring decimals, never floats,
// so user input round-trips through persistence without drift
// 2. **Insertion order is meaningful**: entry slices keep the order
// commands arrived in, which is the order reports render in
// 3. **No behavior**: these are plain data; mutation and aggregation
// live in the ledger package
package models
