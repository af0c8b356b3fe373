// Package testutil contains small helpers shared by package tests: a fluent
// history builder and stream event collectors.
package testutil
