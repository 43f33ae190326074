package engine

// Observer receives scan events. Calls are made from the scan goroutine,
// in order; implementations must not block for long.
type Observer interface {
	// OnProgress fires at every phase boundary.
	OnProgress(pct int, label string)
	// OnFinding fires for each finding once its phase has completed.
	OnFinding(f Finding)
	// OnComplete fires exactly once per completed scan. It does not fire
	// for cancelled scans.
	OnComplete(r Result)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Progress func(pct int, label string)
	Finding  func(f Finding)
	Complete func(r Result)
}

func (o ObserverFuncs) OnProgress(pct int, label string) {
	if o.Progress != nil {
		o.Progress(pct, label)
	}
}

func (o ObserverFuncs) OnFinding(f Finding) {
	if o.Finding != nil {
		o.Finding(f)
	}
}

func (o ObserverFuncs) OnComplete(r Result) {
	if o.Complete != nil {
		o.Complete(r)
	}
}
