// Package main provides the entry point for the precache CLI.
//
// precache warms an offline cache of the news API: it stores the category
// and article lists, a handful of article details and the images they
// reference, and records the outcome so later runs can be skipped.
//
// Usage:
//
//	precache run
//	precache watch
//	precache status --markdown
//
// See --help for all available options.
package main

func main() {
	Execute()
}
