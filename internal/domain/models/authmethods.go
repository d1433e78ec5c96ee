// internal/domain/models/authmethods.go
package models

// AuthMethod represents an authentication method option.
type AuthMethod struct {
	Value string // The value stored in the database
	Label string // The display label in the UI
}

// AuthMethodEmail is the credential (email+password) method.
const AuthMethodEmail = "email"

// AllAuthMethods contains all supported auth methods with their display
// labels. Federated methods store the provider tag in auth_method.
var AllAuthMethods = []AuthMethod{
	{Value: "email", Label: "Email"},
	{Value: "google", Label: "Google"},
	{Value: "facebook", Label: "Facebook"},
	{Value: "linkedin", Label: "LinkedIn"},
	{Value: "microsoft", Label: "Microsoft"},
	{Value: "github", Label: "GitHub"},
}

// EnabledAuthMethods contains the auth methods currently wired up.
// Google is the configured federated provider; the others remain valid
// stored values for accounts imported from the previous system.
var EnabledAuthMethods = []AuthMethod{
	{Value: "email", Label: "Email"},
	{Value: "google", Label: "Google"},
}

// IsValidAuthMethod checks if a value is a valid auth method.
func IsValidAuthMethod(value string) bool {
	for _, m := range AllAuthMethods {
		if m.Value == value {
			return true
		}
	}
	return false
}

// MethodLabel returns the display label for an auth method value, or
// the value itself if it is not a known method.
func MethodLabel(value string) string {
	for _, m := range AllAuthMethods {
		if m.Value == value {
			return m.Label
		}
	}
	return value
}
