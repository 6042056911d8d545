package tool

import (
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"
)

// CatalogueEntry is the descriptive export of one tool for a function-calling
// layer.
type CatalogueEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	Mutating    bool            `json:"mutating"`
}

// Catalogue lists every registered tool sorted by name.
func (r *Registry) Catalogue() []CatalogueEntry {
	defs := r.Definitions()
	out := make([]CatalogueEntry, len(defs))
	for i, d := range defs {
		out[i] = CatalogueEntry{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Schema,
			Mutating:    d.Mutating,
		}
	}
	return out
}

// OpenAITools exports the catalogue in the OpenAI function-calling format.
func (r *Registry) OpenAITools() []openai.Tool {
	defs := r.Definitions()
	out := make([]openai.Tool, len(defs))
	for i, d := range defs {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Schema,
			},
		}
	}
	return out
}
