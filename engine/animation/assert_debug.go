//go:build animdebug

package animation

const debugAssertions = true
