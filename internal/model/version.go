package model

// Version constants for persisted payloads and the application.
const (
	// PayloadVersion is the schema version stamped on payloads produced here.
	PayloadVersion = 1

	// AppVersion is the sales machine version.
	AppVersion = "0.3.0"
)
