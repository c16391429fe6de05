// Package device stores claimed DigiPlugs.
//
// A device row is keyed by the plug's hardware id, which is also the
// topic level it publishes under (digihome/devices/<id>/...). The core
// only toggles the active and online flags and records Wi-Fi details;
// devices are created by the claim flow and removed through the API.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//
//	d := device.New("A1B2C3D4E5F6", accountID) // "DigiPlug D4E5F6"
//	if err := repo.Create(ctx, d); errors.Is(err, device.ErrDeviceExists) {
//	    // already claimed
//	}
//
//	owned, err := repo.GetOwned(ctx, accountID, "A1B2C3D4E5F6")
package device
