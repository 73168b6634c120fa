// Package device binds the static catalog into running devices and
// parameters, routes register updates to their converters and turns
// commands back into register writes.
//
// A device is instantiated per configured entry once its read bus address
// shows up in a system-config response:
//
//	reg, _ := device.NewRegistry(cat, []device.Config{{ReadBusAddress: "0x08", Template: "HG"}}, device.Options{}, log)
//	reg.AddDevice("192.168.1.40", 0x08)       // topic Wolf/192.168.1.40/HG_0x08
//	reg.ProcessRead(0x08, 3, nil, 0xD7, 0x00) // telegram 3 = 21.5
//	batch, err := reg.Collect()
//
// Parameters sharing a display name on one device are flagged duplicate;
// their topics and command paths carry the PTID as an extra segment.
package device
