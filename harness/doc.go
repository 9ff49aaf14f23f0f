// Package harness runs changefeed scenarios against any feed.Source paired
// with an Admin that performs the writes: the in-process memtable store,
// or a remote feed server through the client package.
//
// The scenarios cover pull-mode ordering of insert, update, replace and
// delete; push-mode delivery up to a table abort; the hasNext and toArray
// restrictions; Close during an in-flight Next; and delivery resuming on
// the same feed after the table is recreated.
//
//	report := harness.Run(ctx, harness.Env{Source: store, Admin: store, Table: "test"})
//	if !report.Passed() {
//		fmt.Print(report)
//	}
package harness
