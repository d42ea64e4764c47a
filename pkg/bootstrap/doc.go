// Package bootstrap resolves the one authoritative session snapshot a tab
// needs on load, before the live event stream catches up.
//
// The result is cached per tab like a memoised promise: concurrent callers
// share a single request and later callers reuse the answer until
// Invalidate is called (the login action). A failed fetch is not an error
// for callers; it resolves to an unauthenticated state.
package bootstrap
