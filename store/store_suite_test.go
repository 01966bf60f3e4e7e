package store

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestStorePackage(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Blob Store Suite")
}
