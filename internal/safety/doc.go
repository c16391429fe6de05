// Package safety handles faults reported by plugs on their alert topic.
package safety
