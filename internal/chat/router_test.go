package chat

import "testing"

var testCfg = Config{
	DeployDeepSeek:   "deepseek-r1",
	DeployLlama:      "llama-3-3-70b",
	DeployMistral:    "mistral-large-2411",
	DeployClassifier: "phi-4-mini",
}

func TestSelectDeploymentRules(t *testing.T) {
	cases := []struct {
		name   string
		c      Classification
		tier   string
		hints  Hints
		model  string
		deploy string
	}{
		{
			name:   "high complexity math goes to deepseek",
			c:      Classification{Type: TypeMath, Complexity: ComplexityHigh, Language: "en"},
			tier:   "standard",
			model:  ModelDeepSeek,
			deploy: "deepseek-r1",
		},
		{
			name:   "high complexity coding goes to deepseek",
			c:      Classification{Type: TypeCoding, Complexity: ComplexityHigh, Language: "en"},
			tier:   "standard",
			model:  ModelDeepSeek,
			deploy: "deepseek-r1",
		},
		{
			name:  "medium complexity coding does not",
			c:     Classification{Type: TypeCoding, Complexity: ComplexityMedium, Language: "en"},
			tier:  "standard",
			model: ModelLlama,
		},
		{
			name:  "creative beats language rule",
			c:     Classification{Type: TypeCreative, Complexity: ComplexityLow, Language: "fr"},
			tier:  "standard",
			model: ModelLlama,
		},
		{
			name:  "vip tier routes to llama regardless of type",
			c:     Classification{Type: TypeOther, Complexity: ComplexityLow, Language: "fr"},
			tier:  "vip",
			model: ModelLlama,
		},
		{
			name:  "chat routes to llama",
			c:     Classification{Type: TypeChat, Complexity: ComplexityLow, Language: "en"},
			tier:  "standard",
			model: ModelLlama,
		},
		{
			name:   "french non-chat routes to mistral",
			c:      Classification{Type: TypeOther, Complexity: ComplexityLow, Language: "fr"},
			tier:   "standard",
			model:  ModelMistral,
			deploy: "mistral-large-2411",
		},
		{
			name:  "fallback is llama",
			c:     Classification{Type: TypeOther, Complexity: ComplexityLow, Language: "en"},
			tier:  "standard",
			model: ModelLlama,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SelectDeployment(tc.c, tc.tier, testCfg, tc.hints)
			if got.Model != tc.model {
				t.Fatalf("expected model %s, got %s", tc.model, got.Model)
			}
			if tc.deploy != "" && got.Deployment != tc.deploy {
				t.Fatalf("expected deployment %s, got %s", tc.deploy, got.Deployment)
			}
		})
	}
}

func TestHintsOverrideClassifier(t *testing.T) {
	c := Classification{Type: TypeChat, Complexity: ComplexityHigh, Language: "en"}

	got := SelectDeployment(c, "standard", testCfg, Hints{Type: TypeMath})
	if got.Model != ModelDeepSeek {
		t.Fatalf("type hint must override classifier: got %s", got.Model)
	}

	c = Classification{Type: TypeOther, Complexity: ComplexityLow, Language: "en"}
	got = SelectDeployment(c, "standard", testCfg, Hints{Language: "fr"})
	if got.Model != ModelMistral {
		t.Fatalf("language hint must override classifier: got %s", got.Model)
	}
}

func TestDeploymentForModel(t *testing.T) {
	if DeploymentForModel(ModelClassifier, testCfg) != "phi-4-mini" {
		t.Fatalf("classifier deployment lookup failed")
	}
	if DeploymentForModel("gpt-oss", testCfg) != "llama-3-3-70b" {
		t.Fatalf("unknown models must fall back to the llama deployment")
	}
}
