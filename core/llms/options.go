package llms

type RequestOption func(*Request)

func WithTemperature(temperature float64) RequestOption {
	return func(r *Request) {
		r.Temperature = &temperature
	}
}

func WithMaxOutputTokens(tokens int) RequestOption {
	return func(r *Request) {
		r.MaxOutputTokens = &tokens
	}
}
