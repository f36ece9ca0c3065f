package fluid

// Quantity is a bounded amount of a single fluid kind, measured in liters.
// The invariant 0 <= Amount <= Capacity is restored by Clamp after every
// mutation; callers never observe a violated quantity.
type Quantity struct {
	Kind     Kind
	Amount   float64
	Capacity float64
}

// NewQuantity returns an empty quantity with the given kind and capacity.
func NewQuantity(kind Kind, capacity float64) Quantity {
	if capacity < 0 {
		capacity = 0
	}
	return Quantity{Kind: kind, Capacity: capacity}
}

// Clamp forces Amount back into [0, Capacity], absorbing floating error.
func (q *Quantity) Clamp() {
	if q.Amount < 0 {
		q.Amount = 0
	}
	if q.Amount > q.Capacity {
		q.Amount = q.Capacity
	}
}

// Add admits up to liters into the quantity and returns the volume actually
// admitted. Negative requests admit nothing.
func (q *Quantity) Add(liters float64) float64 {
	if liters <= 0 {
		return 0
	}
	spare := q.Capacity - q.Amount
	if liters > spare {
		liters = spare
	}
	q.Amount += liters
	q.Clamp()
	return liters
}

// Drain removes up to liters from the quantity and returns the volume
// actually removed. Negative requests remove nothing.
func (q *Quantity) Drain(liters float64) float64 {
	if liters <= 0 {
		return 0
	}
	if liters > q.Amount {
		liters = q.Amount
	}
	q.Amount -= liters
	q.Clamp()
	return liters
}

// FillRatio returns Amount/Capacity, or 0 for a zero-capacity holder.
func (q Quantity) FillRatio() float64 {
	if q.Capacity <= 0 {
		return 0
	}
	return q.Amount / q.Capacity
}

// Spare returns the remaining headroom before the quantity is full.
func (q Quantity) Spare() float64 {
	spare := q.Capacity - q.Amount
	if spare < 0 {
		return 0
	}
	return spare
}
