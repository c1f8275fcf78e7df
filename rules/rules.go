//go:build ruleguard

// Package gorules contains custom linting rules for golangci-lint via ruleguard.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags the Add/Done goroutine pattern that wg.Go replaces.
//
//	wg.Add(1)
//	go func() {
//	    defer wg.Done()
//	    serve()
//	}()
//
// becomes
//
//	wg.Go(serve)
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done").
		Suggest("$wg.Go(func() { $body })")
}

// TestingContext flags context.Background in tests; t.Context is cancelled
// when the test ends, which stops capture loops started by the test.
func TestingContext(m dsl.Matcher) {
	m.Match(
		`$ctx := context.Background()`,
		`$fn(context.Background(), $*args)`,
		`$ctx := context.TODO()`,
		`$fn(context.TODO(), $*args)`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("in tests, use t.Context() instead of a background context")
}

// EnhancedErrors flags plain error construction in the capture and
// rendering packages, which report through the errors builder so that
// callers can match on component and category.
func EnhancedErrors(m dsl.Matcher) {
	inCore := m.File().PkgPath.Matches(`/internal/(audiocore|spectrum|render|overlay)(/|$)`) &&
		!m.File().Name.Matches(`_test\.go$`)

	m.Match(`fmt.Errorf($*_)`).
		Where(inCore).
		Report("build errors with errors.Newf(...).Component(...).Category(...).Build()")

	m.Match(`errors.New($msg)`).
		Where(inCore && m["msg"].Type.Is("string")).
		Report("build errors with errors.Newf(...).Component(...).Category(...).Build()")
}

// StructuredLogging flags preformatted log messages; values belong in fields.
func StructuredLogging(m dsl.Matcher) {
	m.Match(
		`$log.Debug(fmt.Sprintf($*_), $*_)`,
		`$log.Info(fmt.Sprintf($*_), $*_)`,
		`$log.Warn(fmt.Sprintf($*_), $*_)`,
		`$log.Error(fmt.Sprintf($*_), $*_)`,
	).
		Where(m["log"].Type.Implements("github.com/wavebar/wavebar/internal/logger.Logger")).
		Report("pass values as logger fields instead of formatting the message")
}
