package drivers

import (
	"context"

	"github.com/example/autoride/internal/models"
)

// TestDrivers is the fleet used for local runs and demos.
var TestDrivers = []models.Driver{
	{Phone: "+919876543210", Name: "Santosh Patil", VehicleNumber: "MH 09 AB 1234", ZoneID: "railway-station"},
	{Phone: "+919876543211", Name: "Ramesh Jadhav", VehicleNumber: "MH 09 CD 5678", ZoneID: "bus-stand"},
	{Phone: "+919876543212", Name: "Ajay More", VehicleNumber: "MH 09 EF 9012", ZoneID: "mahalaxmi"},
	{Phone: "+919876543213", Name: "Vijay Kamble", VehicleNumber: "MH 09 GH 3456", ZoneID: "rankala"},
	{Phone: "+919876543214", Name: "Dinesh Shinde", VehicleNumber: "MH 09 IJ 7890", ZoneID: "shivaji-udyan"},
	{Phone: "+919309484985", Name: "Auto Driver", VehicleNumber: "MH 09 KK 0001", ZoneID: models.AllZones},
}

// Seed registers TestDrivers as verified, available drivers and returns them
// with their generated ids.
func (d *Directory) Seed(ctx context.Context) ([]models.Driver, error) {
	out := make([]models.Driver, 0, len(TestDrivers))
	for _, td := range TestDrivers {
		td.Status = models.DriverAvailable
		td.Rating = 4.8
		td.IsVerified = true
		drv, err := d.Register(ctx, td)
		if err != nil {
			return nil, err
		}
		out = append(out, drv)
	}
	return out, nil
}
