package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a credential (SMTP app password, service-role key,
// SendGrid key, trigger secret) that must never reach logs or JSON output.
// fmt and encoding/json both see the redacted placeholder.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw value. Call it only at the point the credential is
// handed to a client (SMTP auth, HTTP headers, DSNs).
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether the secret carries a non-empty value.
func (s SecretString) IsSet() bool {
	return s != ""
}
