// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package services describes the upstream services the gateway can front:
// their slugs, credential field schemas and connection-test defaults.
//
// Field schemas are dynamic rows in the metadata store; the tables here are
// the compiled-in fallback used when a service row is absent. The gateway
// only acts on the Encrypted flag, the rest of the schema drives the
// dashboard forms.
package services

// Service slugs. An endpoint's credential carries exactly one of these.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	MSSQL    = "mssql"
	Supabase = "supabase"
	Stripe   = "stripe"
	Mixpanel = "mixpanel"
)

// FieldType is the dashboard input type of a credential field.
type FieldType string

// Known field types.
const (
	FieldText     FieldType = "text"
	FieldPassword FieldType = "password"
	FieldURL      FieldType = "url"
	FieldCheckbox FieldType = "checkbox"
)

// Field is one entry of a service's credential field schema.
type Field struct {
	Key       string    `json:"key"`
	Type      FieldType `json:"type"`
	Required  bool      `json:"required"`
	Encrypted bool      `json:"encrypted"`
}

var sqlFields = []Field{
	{Key: "host", Type: FieldText, Required: true},
	{Key: "port", Type: FieldText, Required: true},
	{Key: "database", Type: FieldText, Required: true},
	{Key: "username", Type: FieldText, Required: true},
	{Key: "password", Type: FieldPassword, Required: true, Encrypted: true},
	{Key: "ssl", Type: FieldCheckbox},
}

var defaultFields = map[string][]Field{
	Postgres: sqlFields,
	MySQL:    sqlFields,
	MSSQL:    sqlFields,
	Supabase: {
		{Key: "url", Type: FieldURL, Required: true},
		{Key: "api_key", Type: FieldPassword, Required: true, Encrypted: true},
	},
	Stripe: {
		{Key: "secret_key", Type: FieldPassword, Required: true, Encrypted: true},
	},
	Mixpanel: {
		{Key: "project_id", Type: FieldText, Required: true},
		{Key: "service_account_username", Type: FieldText, Required: true},
		{Key: "service_account_secret", Type: FieldPassword, Required: true, Encrypted: true},
	},
}

// testTools names the cheap read used by the connection test per service.
var testTools = map[string]string{
	Postgres: "list_tables",
	MySQL:    "list_tables",
	MSSQL:    "list_tables",
	Supabase: "list_tables",
	Stripe:   "get_balance",
	Mixpanel: "list_events",
}

// IsKnown reports whether slug names a supported service.
func IsKnown(slug string) bool {
	_, ok := defaultFields[slug]
	return ok
}

// Known returns the supported service slugs.
func Known() []string {
	return []string{Postgres, MySQL, MSSQL, Supabase, Stripe, Mixpanel}
}

// DefaultFields returns the compiled-in field schema for a service, or nil
// for an unknown slug. Callers must not mutate the result.
func DefaultFields(slug string) []Field {
	return defaultFields[slug]
}

// DefaultTestTool returns the tool the connection test invokes for a service.
func DefaultTestTool(slug string) string {
	return testTools[slug]
}

// EncryptedKeys collects the field keys a schema declares encrypted.
func EncryptedKeys(fields []Field) map[string]bool {
	keys := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Encrypted {
			keys[f.Key] = true
		}
	}
	return keys
}
