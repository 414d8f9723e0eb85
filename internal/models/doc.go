// Package models defines the core domain models for groupsplit.
//
// # Models
//
//   - User: registered account, referenced by groups and expenses but owned by neither
//   - UserRef: the weak (id, username) reference groups and expenses carry
//   - Group: named set of members that owns its expenses
//   - Expense: an amount fronted by one member and shared with others in the same group
//
// # Design Principles
//
//  1. Relationships are ID strings, never pointers, so models stay free of cycles.
//  2. Money is decimal.Decimal; floats never touch amounts.
//  3. Expenses are immutable once recorded. Membership changes do not rewrite them.
package models
