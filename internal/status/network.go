package status

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	EnvNetworkType       = "NETWORK_TYPE"
	EnvNetworkIP         = "NETWORK_IP"
	EnvNetworkStatus     = "NETWORK_STATUS"
	EnvNetworkGateway    = "NETWORK_GATEWAY"
	EnvNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	EnvNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// NetworkFromEnv reads the pi-helper variables. It returns nil when
// NETWORK_STATUS is unset, meaning pi-helper is not running.
func NetworkFromEnv(getenv func(string) string) *NetworkInfo {
	s := getenv(EnvNetworkStatus)
	if s == "" {
		return nil
	}
	return &NetworkInfo{
		Type:       getenv(EnvNetworkType),
		IP:         getenv(EnvNetworkIP),
		Status:     s,
		Gateway:    getenv(EnvNetworkGateway),
		WifiStatus: getenv(EnvNetworkWifiStatus),
		SSID:       getenv(EnvNetworkWifiSSID),
	}
}
