package db

import "passbridge/pkg/consts"

var dbTableSchemas = map[string]string{
	consts.PassTemplateTable:     passTemplateSchema,
	consts.PassTable:             passSchema,
	consts.PassSerialByIDTable:   passSerialByIDSchema,
	consts.RegistrationsBySerial: registrationsBySerialSchema,
	consts.RegistrationsByDevice: registrationsByDeviceSchema,
	consts.ScanEventTable:        scanEventSchema,
}

var passTemplateSchema = `
CREATE TABLE IF NOT EXISTS  %s.pass_templates (
id varchar,
merchant_id varchar,
name varchar,
description varchar,
style varchar,
colors_json text,
fields_json text,
images map<text, text>,
barcode_format varchar,
locations_json text,
max_stamps int,
created timestamp,
updated timestamp,
PRIMARY KEY (id)
)
`

// state is the LiveState JSON document; state_version backs the
// compare-and-set update path.
var passSchema = `
CREATE TABLE IF NOT EXISTS  %s.passes (
serial_number varchar,
id varchar,
auth_token varchar,
wallet_type varchar,
template_id varchar,
merchant_id varchar,
state text,
state_version bigint,
verified BOOLEAN,
installed_android BOOLEAN,
created timestamp,
last_updated timestamp,
deleted_at timestamp,
PRIMARY KEY (serial_number)
)
`

var passSerialByIDSchema = `
CREATE TABLE IF NOT EXISTS  %s.pass_serial_by_id (
id varchar,
serial_number varchar,
PRIMARY KEY (id)
)
`

var registrationsBySerialSchema = `
CREATE TABLE IF NOT EXISTS  %s.registrations_by_serial (
serial_number varchar,
device_id varchar,
pass_type_id varchar,
push_token varchar,
created timestamp,
PRIMARY KEY (serial_number, device_id)
)
`

var registrationsByDeviceSchema = `
CREATE TABLE IF NOT EXISTS  %s.registrations_by_device (
device_id varchar,
pass_type_id varchar,
serial_number varchar,
created timestamp,
PRIMARY KEY ((device_id, pass_type_id), serial_number)
)
`

var scanEventSchema = `
CREATE TABLE IF NOT EXISTS  %s.scan_events (
serial_number varchar,
event_time timestamp,
action varchar,
stamps_after int,
points_after int,
PRIMARY KEY (serial_number, event_time)
) WITH CLUSTERING ORDER BY (event_time desc)
`
