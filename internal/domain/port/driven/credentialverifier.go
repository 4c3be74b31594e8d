package driven

// CredentialVerifier defines the driven port that turns a supplied account
// credential into its stored form and checks a supplied credential against a
// stored one.
type CredentialVerifier interface {
	// Seal returns the form of plain that is written to the account document.
	Seal(plain string) (string, error)

	// Verify reports whether supplied matches the stored form.
	Verify(stored, supplied string) bool
}
