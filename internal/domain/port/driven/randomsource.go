package driven

// RandomSource defines the driven port for random password fragments.
type RandomSource interface {
	// Fragment returns n random characters.
	Fragment(n int) (string, error)
}
