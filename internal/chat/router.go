// Package chat selects the model deployment serving an AI chat request.
// Routing is a fixed priority list over the prompt classification and the
// client's subscription tier; caller-supplied hints override the classifier.
package chat

// Classification types.
const (
	TypeChat     = "chat"
	TypeCreative = "creative"
	TypeMath     = "math"
	TypeCoding   = "coding"
	TypeOther    = "other"
)

// Complexity levels.
const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// Model names returned by the router.
const (
	ModelDeepSeek   = "DeepSeek-R1"
	ModelLlama      = "Llama-3.3-70B"
	ModelMistral    = "Mistral-Large-2411"
	ModelClassifier = "Phi-4-mini"
)

// Classification is the classifier's read of a prompt.
type Classification struct {
	Type       string `json:"type"`
	Complexity string `json:"complexity"`
	Language   string `json:"language"`
}

// Hints optionally override classifier results. There is no complexity hint;
// complexity always comes from the classifier.
type Hints struct {
	Type     string `json:"type,omitempty"`
	Language string `json:"language,omitempty"`
}

// Config maps model names to deployment identifiers.
type Config struct {
	DeployDeepSeek   string
	DeployLlama      string
	DeployMistral    string
	DeployClassifier string
}

// Decision is the routing outcome.
type Decision struct {
	Model      string `json:"model"`
	Deployment string `json:"deployment"`
}

// applyHints overlays caller hints on the classification. The classifier acts
// as the fallback whenever a hint is absent.
func applyHints(c Classification, h Hints) Classification {
	if h.Type != "" {
		c.Type = h.Type
	}
	if h.Language != "" {
		c.Language = h.Language
	}
	return c
}

// SelectDeployment picks the deployment for a classified prompt.
//
// Rules in priority order:
//  1. math/coding with high complexity -> DeepSeek-R1
//  2. creative type or VIP tier       -> Llama 3.3 70B
//  3. chat type                       -> Llama 3.3 70B
//  4. French language                 -> Mistral Large 2411
//  5. fallback                        -> Llama 3.3 70B
func SelectDeployment(c Classification, clientTier string, cfg Config, hints Hints) Decision {
	effective := applyHints(c, hints)

	if (effective.Type == TypeMath || effective.Type == TypeCoding) && effective.Complexity == ComplexityHigh {
		return Decision{Model: ModelDeepSeek, Deployment: cfg.DeployDeepSeek}
	}

	if effective.Type == TypeCreative || clientTier == "vip" {
		return Decision{Model: ModelLlama, Deployment: cfg.DeployLlama}
	}

	if effective.Type == TypeChat {
		return Decision{Model: ModelLlama, Deployment: cfg.DeployLlama}
	}

	if effective.Language == "fr" {
		return Decision{Model: ModelMistral, Deployment: cfg.DeployMistral}
	}

	return Decision{Model: ModelLlama, Deployment: cfg.DeployLlama}
}

// DeploymentForModel resolves a model name to its deployment, falling back to
// the Llama deployment for unknown names.
func DeploymentForModel(model string, cfg Config) string {
	switch model {
	case ModelDeepSeek:
		return cfg.DeployDeepSeek
	case ModelLlama:
		return cfg.DeployLlama
	case ModelMistral:
		return cfg.DeployMistral
	case ModelClassifier:
		return cfg.DeployClassifier
	default:
		return cfg.DeployLlama
	}
}
