// Package netstatus tracks network reachability.
//
// A Monitor holds the current ReachabilityState and notifies subscribers
// when it changes. It is driven by platform events: SetOnline, SetOffline
// and SetConnectionType. A Prober produces those events from periodic HTTP
// probes when no other source is available.
//
// After coming back online WasOffline stays true for a grace window so that
// a "connection restored" banner can be shown.
package netstatus
