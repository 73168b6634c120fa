// Package catalog holds the static ISM7 lookup tables: device templates
// (device type to PTIDs), parameter templates (name, writability, control
// type, label tables) and converter templates (binary encoding, keyed by
// CTID = PTID), plus the translation dictionary.
//
// The catalog is read from a YAML file once at startup and never mutated:
//
//	devices:
//	  - id: 1
//	    name: HG
//	    parameters: [11, 12]
//	parameters:
//	  - ptid: 11
//	    name: Kesseltemperatur
//	    control_type: number
//	    unit: "°C"
//	converters:
//	  - ctid: 11
//	    family: numeric
//	    type: SS10
//	    telegram: 3
//	translations:
//	  Kesseltemperatur: Boiler temperature
package catalog
