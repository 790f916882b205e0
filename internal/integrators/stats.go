package integrators

// Stats counts the work done by a stepper since its last Reset.
type Stats struct {
	Steps       int
	Rejected    int
	Evaluations int
	Jacobians   int
	Factorized  int

	// Order is the current method order; MaxOrder the highest used.
	Order    int
	MaxOrder int
	LastStep float64
}
