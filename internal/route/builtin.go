package route

// DefaultSpeedKmh is applied to waypoints that do not set their own speed.
const DefaultSpeedKmh = 60.0

// DelhiToBangalore returns the six-node north-south demo route, every
// waypoint travelling at speedKmh.
func DelhiToBangalore(speedKmh float64) []Waypoint {
	return []Waypoint{
		{Name: "Delhi", Latitude: 28.6139, Longitude: 77.2090, SpeedKmh: speedKmh},
		{Name: "Jaipur", Latitude: 26.9124, Longitude: 75.7873, SpeedKmh: speedKmh},
		{Name: "Indore", Latitude: 22.7196, Longitude: 75.8577, SpeedKmh: speedKmh},
		{Name: "Nagpur", Latitude: 21.1458, Longitude: 79.0882, SpeedKmh: speedKmh},
		{Name: "Hyderabad", Latitude: 17.3850, Longitude: 78.4867, SpeedKmh: speedKmh},
		{Name: "Bangalore", Latitude: 12.9716, Longitude: 77.5946, SpeedKmh: speedKmh},
	}
}
