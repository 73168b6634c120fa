// Package ism7 bridges one ISM7 heating gateway to MQTT.
//
// The bridge dials the gateway over TLS and runs a protocol session on
// the connection. When the session ends it dials again, with the delay
// growing by 1.5x up to a cap. Decoded values are published per device
// as a JSON document and per parameter on separate topics:
//
//	Wolf/192.168.1.50/HG_0x08                    {"Kesseltemperatur": 54.5, ...}
//	Wolf/192.168.1.50/HG_0x08/Kesseltemperatur   54.5
//
// Commands arrive on {device}/set (JSON object) and
// {device}/set/{parameter}[/{ptid}][/text] (single value). They are
// encoded by the device registry and written on the running session. The
// outcome of every command is published on {prefix}/{gateway}/ack.
//
// A retained health document on {prefix}/{gateway}/status reports the
// session state. It is published periodically and whenever a session
// becomes subscribed. The MQTT client's last will marks the same topic
// offline.
//
// Values are optionally recorded in InfluxDB, and bus devices and session
// history in the SQLite inventory. Prometheus metrics are updated
// throughout.
package ism7
