package config

const (
	// TopicRaw carries browsing/chat events from the ingress to the enrich worker.
	TopicRaw = "raw"

	// TopicProcessed carries enriched events to the persist worker.
	TopicProcessed = "processed"

	// TopicDeadLetter receives payloads that can never be processed.
	TopicDeadLetter = "dead"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)
