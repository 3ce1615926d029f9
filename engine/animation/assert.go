//go:build !animdebug

package animation

// debugAssertions turns query-time range errors into panics. Build with -tags animdebug to enable.
const debugAssertions = false
