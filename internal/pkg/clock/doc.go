// Package clock hides time.Now behind an interface.
package clock
