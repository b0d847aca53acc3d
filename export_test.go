package auth

// SetPasswordHashCost swaps the bcrypt cost and returns a restore func.
func SetPasswordHashCost(cost int) func() {
	prev := passwordHashCost
	passwordHashCost = cost
	return func() { passwordHashCost = prev }
}
