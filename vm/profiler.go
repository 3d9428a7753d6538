package vm

// ---------------------------------------------------------------------------
// Execution counters
// ---------------------------------------------------------------------------

// TotalOps returns the number of instructions dispatched so far.
func (e *Evaluator) TotalOps() uint64 { return e.total }

// OpCounts returns a copy of the per-opcode dispatch counters.
func (e *Evaluator) OpCounts() [256]uint64 { return e.counts }

// ResetCounters zeroes the dispatch counters and the op-limit budget.
func (e *Evaluator) ResetCounters() {
	e.total = 0
	e.counts = [256]uint64{}
}

// DumpStatus logs the total and per-opcode execution counts.
func (e *Evaluator) DumpStatus() {
	log.Infof("evaluator status: %d operations executed", e.total)
	for i, c := range e.counts {
		if c > 0 {
			log.Infof("%20s : %10d", Opcode(i).Name(), c)
		}
	}
}
