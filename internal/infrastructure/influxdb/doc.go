// Package influxdb records decoded ISM7 parameter values in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring.
//
// Every value is one point of the ism7_parameter measurement, tagged with
// gateway, device, parameter and ptid. Numbers and flags go to the
// "value" field, labels and dates to "text".
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteParameter(influxdb.Parameter{
//	    Gateway: "192.168.1.50", Device: "HG_0x08", Parameter: "Kesseltemperatur", PTID: 11, Value: 54.5,
//	}, time.Now())
//
// Write errors are delivered asynchronously to the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
