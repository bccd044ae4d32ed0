// Package profiler is a hierarchical code-path profiler driven by the CPU cycle
// counter.
//
// Instrumented code brackets regions with spans. A span opened while another
// is open becomes its child, and its duration is attributed to the parent so
// the report can show both inclusive time (with children) and exclusive time
// (without):
//
//	p := profiler.New()
//	p.Start()
//
//	func parse(p *profiler.Profiler) {
//		defer p.Func()()
//		...
//	}
//
//	done := p.ZoneBytes("read", uint64(len(buf)))
//	...
//	done()
//
//	p.End() // prints the report
//
// A Profiler is a context object owned by the caller. It is not safe for
// concurrent use; profile each goroutine with its own Profiler and combine the
// results with Report.Merge.
package profiler
