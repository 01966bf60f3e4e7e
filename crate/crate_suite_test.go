package crate

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCratePackage(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Crate Manifest Suite")
}
