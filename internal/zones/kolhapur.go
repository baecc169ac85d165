package zones

import "github.com/example/autoride/internal/models"

// Default returns the built-in Kolhapur catalog.
func Default() *Catalog {
	c, err := New(kolhapurZones, kolhapurRoutes)
	if err != nil {
		panic("zones: built-in catalog invalid: " + err.Error())
	}
	return c
}

func zone(id, name, marathi string, lat, lng, base, perKm, perMin, minFare float64, demand string) models.Zone {
	return models.Zone{
		ID:            id,
		Name:          name,
		NameMarathi:   marathi,
		Center:        models.Coord{Lat: lat, Lng: lng},
		BaseFare:      base,
		PerKmRate:     perKm,
		PerMinuteRate: perMin,
		MinimumFare:   minFare,
		Demand:        demand,
	}
}

var kolhapurZones = []models.Zone{
	zone("railway-station", "Railway Station", "रेल्वे स्थानक", 16.7050, 74.2439, 25, 12, 1, 30, "high"),
	zone("bus-stand", "Bus Stand (CBS)", "मध्यवर्ती बस स्थानक", 16.6967, 74.2400, 25, 12, 1, 30, "high"),
	zone("shahupuri", "Shahupuri Market", "शाहपूरी मार्केट", 16.6980, 74.2350, 25, 12, 1, 30, "medium-high"),
	zone("mahalaxmi", "Mahalaxmi Temple", "महालक्ष्मी मंदिर", 16.6750, 74.2400, 30, 12, 1, 40, "high"),
	zone("jyotiba", "Jyotiba Temple", "ज्योतिबा मंदिर", 16.7200, 74.1800, 40, 14, 1.5, 50, "high"),
	zone("rankala", "Rankala Lake", "रांकला तलाव", 16.6820, 74.2250, 30, 12, 1, 40, "medium"),
	zone("panhala", "Panhala Fort", "पन्हाळा किल्ला", 16.6500, 74.1000, 50, 15, 1.5, 60, "medium"),
	zone("khasbag", "Khasbag Stadium", "खासबाग स्टेडियम", 16.6950, 74.2300, 25, 12, 1, 30, "high"),
	zone("shivaji-udyan", "Shivaji Udyamnagar", "शिवाजी उद्यान नगर", 16.7100, 74.2350, 25, 12, 1, 30, "medium"),
	zone("sykes", "Sykes Extension", "सायक्स एक्स्टेंशन", 16.7020, 74.2480, 25, 12, 1, 30, "medium"),
	zone("ruchira", "Ruchira Park", "रुचिरा पार्क", 16.7150, 74.2300, 25, 12, 1, 30, "low"),
	zone("sangavi", "Sangavi", "सांगवी", 16.7300, 74.2100, 25, 12, 1, 30, "low"),
	zone("tarabai-park", "Tarabai Park", "ताराबाई पार्क", 16.6900, 74.2380, 25, 12, 1, 30, "medium"),
	zone("laxmipuri", "Laxmipuri", "लक्ष्मीपूरी", 16.7080, 74.2250, 25, 12, 1, 30, "medium"),
}

var kolhapurRoutes = []models.RouteHint{
	{From: "railway-station", To: "bus-stand", Fare: 35, DistanceKm: 2},
	{From: "railway-station", To: "mahalaxmi", Fare: 60, DistanceKm: 4},
	{From: "railway-station", To: "rankala", Fare: 55, DistanceKm: 3.5},
	{From: "railway-station", To: "shahupuri", Fare: 40, DistanceKm: 2.5},
	{From: "railway-station", To: "shivaji-udyan", Fare: 45, DistanceKm: 3},
	{From: "railway-station", To: "khasbag", Fare: 40, DistanceKm: 2.5},
	{From: "railway-station", To: "jyotiba", Fare: 80, DistanceKm: 6},
	{From: "railway-station", To: "panhala", Fare: 100, DistanceKm: 8},
	{From: "bus-stand", To: "mahalaxmi", Fare: 50, DistanceKm: 3},
	{From: "bus-stand", To: "rankala", Fare: 50, DistanceKm: 3},
	{From: "bus-stand", To: "shahupuri", Fare: 30, DistanceKm: 1.5},
	{From: "bus-stand", To: "khasbag", Fare: 25, DistanceKm: 1},
	{From: "bus-stand", To: "shivaji-udyan", Fare: 40, DistanceKm: 2.5},
	{From: "mahalaxmi", To: "rankala", Fare: 40, DistanceKm: 2.5},
	{From: "mahalaxmi", To: "shahupuri", Fare: 45, DistanceKm: 3},
	{From: "rankala", To: "tarabai-park", Fare: 35, DistanceKm: 2},
	{From: "khasbag", To: "shahupuri", Fare: 25, DistanceKm: 1.5},
	{From: "khasbag", To: "laxmipuri", Fare: 30, DistanceKm: 2},
	{From: "shivaji-udyan", To: "sangavi", Fare: 40, DistanceKm: 2.5},
	{From: "shivaji-udyan", To: "ruchira", Fare: 35, DistanceKm: 2},
}
