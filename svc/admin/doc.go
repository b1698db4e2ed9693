// Package admin serves operator endpoints for inspecting and overriding
// entitlements and for resetting a user's daily quota counter.
package admin
