// Package precache coordinates a pre-cache run: it decides whether one is
// needed, runs the fetch pipeline and the image prefetcher, persists the
// outcome and exposes the run's state to subscribers.
//
// States move idle → checking → running → complete|failed → idle. A
// completed run returns to idle on its own after the auto-dismiss delay;
// Dismiss does so immediately. Dismissing a running run only hides it: the
// run still finishes and records its status.
package precache
