package stagebuf

import (
	"github.com/hpcio/stagebuf/engine"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Statistics returns the engine's current usage totals. An uninitialized
// pool reports zeros.
func (p *Pool) Statistics() engine.Statistics {
	var stats engine.Statistics

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.engine != nil {
		p.engine.AddStatistics(&stats)
	}
	return stats
}

// BuildStatsString writes a JSON object describing the pool and its engine,
// for diagnostics.
func (p *Pool) BuildStatsString(writer *jwriter.Writer) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	obj := writer.Object()
	defer obj.End()

	obj.Name("Engine").String(p.engineName)
	obj.Name("Initialized").Bool(p.engine != nil)
	if p.engine == nil {
		return
	}

	obj.Name("PageSize").Int(p.pageSize)
	p.engine.BuildStatsString(obj.Name("Allocator"))
}
