package utils

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("truncate", func() {
	It("returns the string unchanged when within the limit", func() {
		Expect(Truncate("short", 10)).To(Equal("short"))
	})

	It("returns the string unchanged when exactly at the limit", func() {
		Expect(Truncate("12345", 5)).To(Equal("12345"))
	})

	It("truncates with ellipsis when over the limit", func() {
		result := Truncate("this is a long string", 10)
		Expect(result).To(Equal("this is a ..."))
	})

	It("never splits a multi-byte character", func() {
		Expect(Truncate("énergie solaire", 3)).To(Equal("éne..."))
		Expect(Truncate("光合作用", 2)).To(Equal("光合..."))
	})
})

var _ = Describe("OneLine", func() {
	It("collapses newlines and runs of spaces", func() {
		Expect(OneLine("  Cells\n\nare   small\t units ")).To(Equal("Cells are small units"))
	})
})
