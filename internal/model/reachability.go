package model

// ConnectionType describes the effective connection quality.
// Values follow the Network Information API effectiveType vocabulary.
type ConnectionType string

const (
	// ConnectionUnknown is used when no quality signal is available.
	ConnectionUnknown ConnectionType = "unknown"
	// ConnectionSlow2G is a very slow link (RTT >= 2000ms).
	ConnectionSlow2G ConnectionType = "slow-2g"
	// Connection2G is a slow link (RTT >= 1400ms).
	Connection2G ConnectionType = "2g"
	// Connection3G is a moderate link (RTT >= 270ms).
	Connection3G ConnectionType = "3g"
	// Connection4G is a fast link.
	Connection4G ConnectionType = "4g"
)

// ReachabilityState is the connectivity view exposed by the network monitor.
type ReachabilityState struct {
	// IsOnline mirrors the platform connectivity flag.
	IsOnline bool `json:"isOnline"`

	// WasOffline is set when connectivity is lost and stays set for a grace
	// window after it returns.
	WasOffline bool `json:"wasOffline"`

	// ConnectionType is the last observed connection quality.
	ConnectionType ConnectionType `json:"connectionType"`
}

// IsSlow reports whether the connection quality is 2g or worse.
func (s ReachabilityState) IsSlow() bool {
	return s.ConnectionType == ConnectionSlow2G || s.ConnectionType == Connection2G
}

// Recovering reports whether connectivity came back recently.
func (s ReachabilityState) Recovering() bool {
	return s.IsOnline && s.WasOffline
}
