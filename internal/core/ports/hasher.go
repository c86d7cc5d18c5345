package ports

// TreeHasher defines the interface for hashing build context content.
//
//go:generate go run go.uber.org/mock/mockgen -destination=mocks/hasher_mock.go -package=mocks -source=hasher.go
type TreeHasher interface {
	// HashTree returns a stable hash over the relative paths, modes and contents of
	// everything under root/src, skipping paths matched by exclude.
	HashTree(root, src string, exclude []string) (string, error)
}
