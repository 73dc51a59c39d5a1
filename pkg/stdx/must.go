package stdx

// Must0 panics if the provided error is not nil. It is meant for
// initialization paths where an error is a programming mistake.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns v, panicking if err is not nil.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
