package logic

// StatePublisher sends the lamp state to the remote feed.
type StatePublisher interface {
	PublishState(on bool) error
}

// Result is what a scheduler step did.
type Result string

const (
	ResultIdle       Result = "IDLE"
	ResultPublished  Result = "PUBLISHED"
	ResultSuppressed Result = "SUPPRESSED"
	ResultFailed     Result = "FAILED"
)

// Reason is why a publish was due.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonStartup   Reason = "STARTUP"
	ReasonChanged   Reason = "CHANGED"
	ReasonRequested Reason = "REQUESTED"
	ReasonHeartbeat Reason = "HEARTBEAT"
)

// Outcome describes a single scheduler step.
type Outcome struct {
	Result Result
	Reason Reason
	State  bool
	// ThrottleCleared is set when the cooldown expired during this step.
	ThrottleCleared bool
	Err             error
}

// Reconciler is the single owner of the lamp state, the publish record and
// the throttle window. It decides when the remote side must be told.
type Reconciler struct {
	timings  Timings
	lamp     bool
	record   PublishRecord
	throttle ThrottleWindow
	forced   bool
	counts   Counts
}

// NewReconciler creates a Reconciler with the lamp at initial. The heartbeat
// clock starts at now and the first Step publishes unconditionally.
func NewReconciler(timings Timings, initial bool, now Millis) *Reconciler {
	return &Reconciler{
		timings: timings,
		lamp:    initial,
		record:  PublishRecord{At: now},
	}
}

// Lamp returns the authoritative lamp state.
func (r *Reconciler) Lamp() bool {
	return r.lamp
}

// Toggle inverts the lamp for an accepted local edge and returns the new state.
func (r *Reconciler) Toggle() bool {
	r.lamp = !r.lamp
	r.counts.Toggles++
	return r.lamp
}

// Apply executes an interpreted command at now. It reports whether the lamp
// state changed.
func (r *Reconciler) Apply(cmd Command, now Millis) bool {
	prev := r.lamp
	switch cmd {
	case SetOn:
		r.lamp = true
		r.counts.CommandsOn++
	case SetOff:
		r.lamp = false
		r.counts.CommandsOff++
	case StatusRequest:
		r.forced = true
		r.counts.StatusRequests++
	case ThrottleRaised:
		// A notice during an active window restarts the cooldown.
		r.throttle.Active = true
		r.throttle.RaisedAt = now
		r.counts.ThrottleNotes++
	default:
		r.counts.Unrecognized++
	}
	return r.lamp != prev
}

// Step evaluates whether a publish is due and, unless throttled, attempts it.
// A failed attempt leaves everything pending for the next step.
func (r *Reconciler) Step(now Millis, pub StatePublisher) Outcome {
	out := Outcome{Result: ResultIdle, State: r.lamp}

	if r.throttle.Active && Since(now, r.throttle.RaisedAt) > r.timings.ThrottleCooldown {
		r.throttle.Active = false
		out.ThrottleCleared = true
	}

	out.Reason = r.due(now)
	if out.Reason == ReasonNone {
		return out
	}

	if r.throttle.Active {
		r.throttle.ObservedAt = now
		r.counts.Suppressed++
		out.Result = ResultSuppressed
		return out
	}

	if err := pub.PublishState(r.lamp); err != nil {
		r.counts.Failed++
		out.Result = ResultFailed
		out.Err = err
		return out
	}

	r.record = PublishRecord{State: r.lamp, At: now, Valid: true}
	r.forced = false
	r.counts.Published++
	out.Result = ResultPublished
	return out
}

func (r *Reconciler) due(now Millis) Reason {
	switch {
	case !r.record.Valid:
		return ReasonStartup
	case r.lamp != r.record.State:
		return ReasonChanged
	case r.forced:
		return ReasonRequested
	case r.timings.Heartbeat > 0 && Since(now, r.record.At) > r.timings.Heartbeat:
		return ReasonHeartbeat
	}
	return ReasonNone
}

// Pending reports whether the next Step would want to publish.
func (r *Reconciler) Pending(now Millis) bool {
	return r.due(now) != ReasonNone
}

// View is a read-only copy of the reconciler state.
type View struct {
	Lamp     bool
	Record   PublishRecord
	Throttle ThrottleWindow
	Forced   bool
	Counts   Counts
}

// View returns a copy of the current state.
func (r *Reconciler) View() View {
	return View{
		Lamp:     r.lamp,
		Record:   r.record,
		Throttle: r.throttle,
		Forced:   r.forced,
		Counts:   r.counts,
	}
}
