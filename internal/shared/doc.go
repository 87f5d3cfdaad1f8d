// Package shared holds helpers used across packages that belong to no single
// layer.
//
// The testutil subpackage captures slog output in memory so tests can assert
// on what a component logged:
//
//	logger, logs := testutil.NewTestLogger(t)
//	svc, _ := services.NewAnalysisService(services.AnalysisOptions{Logger: logger})
//	...
//	testutil.AssertLogContains(t, logs, slog.LevelInfo, "Layout saved")
//
// Nothing here may import domain packages.
package shared
