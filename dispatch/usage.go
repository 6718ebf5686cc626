package dispatch

// Usage captures token usage for a single model response.
type Usage struct {
	Input  int
	Output int
	Total  int
}

// NormalizeUsage fills Total when missing.
func NormalizeUsage(u Usage) Usage {
	if u.Total == 0 {
		u.Total = u.Input + u.Output
	}
	return u
}
