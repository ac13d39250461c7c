// Package search reduces per-segment candidate lists into one ranked page.
package search
