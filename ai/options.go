package ai

import "github.com/tmc/langchaingo/llms"

// CallOptions translates the options into langchaingo call options.
func (o GenerateOptions) CallOptions() []llms.CallOption {
	callOpts := []llms.CallOption{llms.WithTemperature(o.Temperature)}
	if o.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(o.MaxTokens))
	}
	if len(o.StopSequences) > 0 {
		callOpts = append(callOpts, llms.WithStopWords(o.StopSequences))
	}
	if o.JSON {
		callOpts = append(callOpts, llms.WithJSONMode())
	}
	return callOpts
}
