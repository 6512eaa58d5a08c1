package order

// OrderState implements the state pattern for order lifecycle transitions.
type OrderState interface {
	Status() Status
	OnPaymentApproved(o *Order) (OrderState, error)
	OnPaymentFailed(o *Order, reason string) (OrderState, error)
	OnCancelled(o *Order) (OrderState, error)
}

func stateFor(s Status) OrderState {
	switch s {
	case StatusCompleted:
		return completedState{}
	case StatusFailed:
		return failedState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return pendingState{}
	}
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) OnPaymentApproved(o *Order) (OrderState, error) {
	o.FailureReason = ""
	return completedState{}, nil
}

func (pendingState) OnPaymentFailed(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return failedState{}, nil
}

func (pendingState) OnCancelled(*Order) (OrderState, error) {
	return cancelledState{}, nil
}

type completedState struct{}

func (completedState) Status() Status { return StatusCompleted }

func (completedState) OnPaymentApproved(*Order) (OrderState, error) {
	return completedState{}, nil
}

func (completedState) OnPaymentFailed(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (completedState) OnCancelled(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type failedState struct{}

func (failedState) Status() Status { return StatusFailed }

func (failedState) OnPaymentApproved(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (failedState) OnPaymentFailed(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return failedState{}, nil
}

func (failedState) OnCancelled(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) OnPaymentApproved(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnPaymentFailed(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnCancelled(*Order) (OrderState, error) {
	return cancelledState{}, nil
}
