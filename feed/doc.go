// Package feed implements the changefeed cursor.
//
// A Feed wraps one subscription Handle opened on a Source and delivers its
// changes in arrival order, either pulled:
//
//	f, err := feed.Open(ctx, src, feed.Request{Table: "users"})
//	defer f.Close()
//	for {
//	    rec, err := f.Next(ctx)
//	    if errors.IsAborted(err) {
//	        continue // the table went away; the feed stays open
//	    }
//	    ...
//	}
//
// or pushed:
//
//	err := f.Each(func(rec *feed.ChangeRecord, err error) { ... }, func() { ... })
//
// Aborts and transport errors are delivered in place of a record and leave
// the feed open. Only Close and the end of the stream close it.
//
// Feeds are infinite, so the finite-cursor operations HasNext and ToArray
// fail for them with CAPABILITY_UNAVAILABLE; Rows supports both.
package feed
