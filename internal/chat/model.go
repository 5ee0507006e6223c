package chat

// Gemini model IDs usable with Vertex AI context caching.
//
// | Model Name            | API Model ID          | Use Case                     |
// |-----------------------|-----------------------|------------------------------|
// | Gemini 2.5 Pro        | gemini-2.5-pro        | Stable, high-reasoning tasks |
// | Gemini 2.5 Flash      | gemini-2.5-flash      | Stable, balanced performance |
// | Gemini 2.5 Flash-Lite | gemini-2.5-flash-lite | High-throughput, lowest cost |
const (
	ModelGemini25Pro       = "gemini-2.5-pro"
	ModelGemini25Flash     = "gemini-2.5-flash"
	ModelGemini25FlashLite = "gemini-2.5-flash-lite"
)

// DefaultModelName is the model the knowledge cache and review threads use
// unless MODEL overrides it. A cache can only be used with the model it was
// created for.
const DefaultModelName = ModelGemini25Flash
