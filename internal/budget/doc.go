// Package budget estimates each account's electricity cost for the
// current month and warns the owner once per month when it reaches the
// configured share of their budget.
//
// Usage per device is the difference between the first and last
// cumulative energy readings logged this month; cost is usage times the
// account's tariff rate.
package budget
