package hash

// Hash produces and checks hashes of secret strings.
type Hash interface {
	Hash(str string) ([]byte, error)
	Verify(hashed, str string) bool
}
