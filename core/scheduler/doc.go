// Package scheduler searches a bounded future horizon for conflict-free
// working windows per worker. Searches are pure: the evaluation instant is
// passed in explicitly, so identical inputs always yield identical candidate
// lists in the same chronological order.
package scheduler
